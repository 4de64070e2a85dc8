// Package main is an operator CLI for exercising the pipeline's external
// APIs without going through a webhook: diagnose a local image, or send a
// WhatsApp message through the configured Twilio account.
//
// Both commands read the same environment variables as the Lambda
// (TWILIO_SID, TWILIO_AUTH_TOKEN, FROM_NUMBER, OPENAI_API_KEY), but do not
// touch AWS.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hlwee/leafdoctor/internal/config"
	"github.com/hlwee/leafdoctor/internal/diagnosis"
	"github.com/hlwee/leafdoctor/internal/logging"
	"github.com/hlwee/leafdoctor/internal/twilio"
)

var (
	modelFlag string
	toFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "leafdoctor",
	Short: "Plant-disease diagnosis over WhatsApp",
	Long: `Leafdoctor diagnoses plant diseases from photos sent over WhatsApp.

This CLI runs the production clients directly, for testing credentials and
prompts without deploying:

  leafdoctor diagnose leaf.jpg
  leafdoctor diagnose --model gpt-4o-mini leaf.jpg
  leafdoctor send --to whatsapp:+6591234567 "Hello from leafdoctor"`,
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <image-file>",
	Short: "Diagnose a local plant image with the vision model",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			log.Fatal().Msg("OPENAI_API_KEY is required")
		}

		image, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("path", args[0]).Msg("Failed to read image")
		}

		client := diagnosis.NewClient(apiKey, modelFlag)
		result := client.Diagnose(context.Background(), image)
		if result.FromFallback {
			log.Warn().Msg("Inference failed, fallback text returned")
		}
		fmt.Println(result.Text)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send --to <address> <body>",
	Short: "Send a WhatsApp message through the Twilio Messages API",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sid := os.Getenv("TWILIO_SID")
		token := os.Getenv("TWILIO_AUTH_TOKEN")
		from := os.Getenv("FROM_NUMBER")
		if sid == "" || token == "" || from == "" {
			log.Fatal().Msg("TWILIO_SID, TWILIO_AUTH_TOKEN, and FROM_NUMBER are required")
		}

		client := twilio.NewClient(sid, token, from)
		messageSID, err := client.SendMessage(context.Background(), toFlag, args[0])
		if err != nil {
			log.Fatal().Err(err).Str("to", toFlag).Msg("Send failed")
		}
		log.Info().Str("sid", messageSID).Str("to", toFlag).Msg("Message sent")
	},
}

func init() {
	diagnoseCmd.Flags().StringVarP(&modelFlag, "model", "m", config.DefaultModel, "Vision model to use")
	sendCmd.Flags().StringVar(&toFlag, "to", "", "Destination address, e.g. whatsapp:+6591234567")
	sendCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(diagnoseCmd, sendCmd)
}

func main() {
	logging.Init()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
