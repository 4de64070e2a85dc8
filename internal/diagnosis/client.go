// Package diagnosis submits plant images to a vision-capable chat
// completion API and returns the model's diagnosis text.
//
// The pipeline must always produce some reply for the user, so this client
// never fails: any error — transport, API, or a response without usable
// text — degrades to a fixed fallback sentence. The Result type makes that
// contract visible at the call site instead of hiding it behind an error
// that callers are expected to ignore.
package diagnosis

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"
)

// FallbackText is the substitute diagnosis sent when inference cannot be
// completed.
const FallbackText = "Could not analyze the image at the moment. Please try again later."

// visionPrompt is the fixed instruction sent alongside every image.
const visionPrompt = "Diagnose the plant disease and suggest a remedy."

const (
	maxTokens      = 400
	requestTimeout = 20 * time.Second
)

// Result is the outcome of a diagnosis attempt. Text is always non-empty:
// either the first completion's message content verbatim, or FallbackText
// with FromFallback set.
type Result struct {
	Text         string
	FromFallback bool
}

// Client calls the chat completions API with an image and the fixed prompt.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a diagnosis client. Requests use a 20 s timeout and a
// single attempt; the fallback contract replaces retries. Extra request
// options are appended last so tests can redirect the base URL.
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(requestTimeout),
		option.WithMaxRetries(0),
	}
	return &Client{
		client: openai.NewClient(append(base, opts...)...),
		model:  model,
	}
}

// Diagnose sends the JPEG image as a base64 data URL with the fixed prompt
// and returns the completion text. Failures are logged and absorbed into
// the fallback result.
func (c *Client) Diagnose(ctx context.Context, image []byte) Result {
	start := time.Now()
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
				openai.TextContentPart(visionPrompt),
			}),
		},
		MaxTokens: openai.Int(maxTokens),
	})
	if err != nil {
		log.Error().Err(err).Str("model", c.model).Dur("duration", time.Since(start)).Msg("Vision completion failed")
		return Result{Text: FallbackText, FromFallback: true}
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		log.Error().Str("model", c.model).Msg("Vision completion returned no text")
		return Result{Text: FallbackText, FromFallback: true}
	}

	log.Debug().Str("model", c.model).Dur("duration", time.Since(start)).Msg("Vision completion received")
	return Result{Text: completion.Choices[0].Message.Content}
}
