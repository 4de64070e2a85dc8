// Package main is the Lambda entry point for the plant-diagnosis webhook.
//
// The function sits behind an API Gateway proxy integration. Twilio POSTs a
// multipart/form-data webhook for each inbound WhatsApp message with media;
// the handler downloads the image, archives it to S3, asks a vision model
// for a diagnosis, and replies to the sender.
//
// All configuration is resolved at cold start: plain values from the
// environment, secrets from the environment with an SSM Parameter Store
// fallback. A missing required value aborts the cold start.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/hlwee/leafdoctor/internal/config"
	"github.com/hlwee/leafdoctor/internal/diagnosis"
	"github.com/hlwee/leafdoctor/internal/logging"
	"github.com/hlwee/leafdoctor/internal/storage"
	"github.com/hlwee/leafdoctor/internal/twilio"
	"github.com/hlwee/leafdoctor/internal/webhook"
)

var handler *webhook.Handler

func init() {
	initStart := time.Now()
	logging.Init()

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}

	cfg, err := config.Load(ctx, ssm.NewFromConfig(awsCfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	twilioClient := twilio.NewClient(cfg.AccountSID, cfg.AuthToken, cfg.FromNumber)
	uploader := storage.NewUploader(s3.NewFromConfig(awsCfg), cfg.Bucket)
	diagnoser := diagnosis.NewClient(cfg.OpenAIKey, cfg.Model)

	handler = webhook.NewHandler(twilioClient, uploader, diagnoser, twilioClient)

	logging.NewStartupLogger("webhook-lambda").
		S3Bucket("uploads", cfg.Bucket).
		SSMParam("twilioAuthToken", cfg.AuthTokenParam).
		SSMParam("openaiApiKey", cfg.APIKeyParam).
		Config("model", cfg.Model).
		Config("fromNumber", cfg.FromNumber).
		InitDuration(time.Since(initStart)).
		Log()
}

func main() {
	lambda.Start(handler.Handle)
}
