// Package config builds the process-wide configuration for the webhook
// pipeline. All values are resolved exactly once at cold start and injected
// into component constructors; nothing reads the environment per request.
//
// Secrets (the Twilio auth token and the OpenAI API key) may come from
// either an environment variable or SSM Parameter Store. The environment
// variable wins when set, which keeps local runs and tests free of any AWS
// dependency.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// DefaultModel is the vision model used when OPENAI_MODEL is not set.
const DefaultModel = "gpt-4o"

// Default SSM parameter paths for secrets, overridable via the
// SSM_TWILIO_AUTH_TOKEN_PARAM and SSM_OPENAI_API_KEY_PARAM variables.
const (
	defaultAuthTokenParam = "/leafdoctor/prod/twilio-auth-token"
	defaultAPIKeyParam    = "/leafdoctor/prod/openai-api-key"
)

// Config holds everything the webhook Lambda needs to talk to Twilio,
// OpenAI, and S3. A missing required value is a cold-start fatal condition,
// never a per-request error.
type Config struct {
	// AccountSID is the Twilio account identifier, used both as the basic
	// auth username and in the Messages API path.
	AccountSID string
	// AuthToken is the Twilio basic auth password.
	AuthToken string
	// FromNumber is the configured sender address for outbound replies,
	// e.g. "whatsapp:+14155238886".
	FromNumber string
	// OpenAIKey authenticates vision inference calls.
	OpenAIKey string
	// Bucket is the S3 bucket receiving downloaded media.
	Bucket string
	// Model is the vision model identifier.
	Model string

	// AuthTokenParam and APIKeyParam record the SSM paths consulted for the
	// two secrets, for the cold-start summary log.
	AuthTokenParam string
	APIKeyParam    string
}

// ParameterGetter is the slice of the SSM API used for secret fallback.
// Satisfied by *ssm.Client.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Load resolves the configuration from the environment, falling back to SSM
// Parameter Store for secrets. params may be nil, in which case only the
// environment is consulted (local runs, tests).
func Load(ctx context.Context, params ParameterGetter) (*Config, error) {
	cfg := &Config{
		AccountSID:     os.Getenv("TWILIO_SID"),
		AuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		FromNumber:     os.Getenv("FROM_NUMBER"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		Bucket:         os.Getenv("S3_BUCKET_NAME"),
		Model:          os.Getenv("OPENAI_MODEL"),
		AuthTokenParam: envOrDefault("SSM_TWILIO_AUTH_TOKEN_PARAM", defaultAuthTokenParam),
		APIKeyParam:    envOrDefault("SSM_OPENAI_API_KEY_PARAM", defaultAPIKeyParam),
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	if cfg.AuthToken == "" && params != nil {
		v, err := fetchSecret(ctx, params, cfg.AuthTokenParam)
		if err != nil {
			return nil, fmt.Errorf("resolve Twilio auth token: %w", err)
		}
		cfg.AuthToken = v
	}
	if cfg.OpenAIKey == "" && params != nil {
		v, err := fetchSecret(ctx, params, cfg.APIKeyParam)
		if err != nil {
			return nil, fmt.Errorf("resolve OpenAI API key: %w", err)
		}
		cfg.OpenAIKey = v
	}

	var missing []string
	for _, req := range []struct {
		name  string
		value string
	}{
		{"TWILIO_SID", cfg.AccountSID},
		{"TWILIO_AUTH_TOKEN", cfg.AuthToken},
		{"FROM_NUMBER", cfg.FromNumber},
		{"OPENAI_API_KEY", cfg.OpenAIKey},
		{"S3_BUCKET_NAME", cfg.Bucket},
	} {
		if req.value == "" {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func fetchSecret(ctx context.Context, params ParameterGetter, path string) (string, error) {
	result, err := params.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &path,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read SSM parameter %s: %w", path, err)
	}
	log.Debug().Str("param", path).Msg("Secret loaded from SSM")
	return *result.Parameter.Value, nil
}

func envOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}
