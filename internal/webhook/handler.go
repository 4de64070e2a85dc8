package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"github.com/hlwee/leafdoctor/internal/diagnosis"
	"github.com/hlwee/leafdoctor/internal/metrics"
)

// MediaFetcher downloads the media resource referenced by the webhook.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, mediaURL string) ([]byte, error)
}

// Uploader archives the downloaded media and returns the object key.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Diagnoser produces a diagnosis for the image. It never fails; a degraded
// result carries the fallback text.
type Diagnoser interface {
	Diagnose(ctx context.Context, image []byte) diagnosis.Result
}

// ReplySender delivers the diagnosis text back to the original sender and
// returns the platform message identifier.
type ReplySender interface {
	SendMessage(ctx context.Context, to, body string) (string, error)
}

// Handler sequences the pipeline stages for one webhook invocation.
//
// Stage failure policy: decode, extract, and fetch failures are terminal
// (500, nothing further runs); a storage failure is terminal with the raw
// error exposed; diagnosis and reply delivery failures are tolerated — the
// dispatcher still receives 200 so Twilio does not re-deliver the webhook.
type Handler struct {
	fetcher  MediaFetcher
	uploader Uploader
	diagnose Diagnoser
	sender   ReplySender
}

// NewHandler creates the pipeline handler from its collaborators.
func NewHandler(fetcher MediaFetcher, uploader Uploader, diagnose Diagnoser, sender ReplySender) *Handler {
	return &Handler{
		fetcher:  fetcher,
		uploader: uploader,
		diagnose: diagnose,
		sender:   sender,
	}
}

// Handle processes one inbound webhook event. It always returns a
// well-formed response and a nil error: every failure mode maps to a 500
// response body, never to a Lambda invocation error.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, _ error) {
	rec := metrics.NewPipeline()
	defer rec.Flush()
	defer func() {
		// Outermost boundary: nothing may escape the handler.
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Handler panicked")
			resp = errorResponse(fmt.Sprint(r))
		}
		rec.Outcome(resp.StatusCode)
	}()

	body, contentType, err := DecodePayload(req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode webhook payload")
		return errorResponse(err.Error()), nil
	}
	log.Debug().Int("bodySize", len(body)).Str("contentType", contentType).Msg("Webhook payload decoded")

	msg, err := ParseMediaMessage(body, contentType)
	if err != nil {
		log.Error().Err(err).Msg("Failed to extract webhook fields")
		return errorResponse(err.Error()), nil
	}
	log.Info().Str("from", msg.From).Str("mediaUrl", msg.MediaURL).Msg("Processing inbound media message")

	fetchStart := time.Now()
	data, err := h.fetcher.FetchMedia(ctx, msg.MediaURL)
	rec.Stage("Fetch", time.Since(fetchStart))
	if err != nil {
		log.Error().Err(err).Str("mediaUrl", msg.MediaURL).Msg("Failed to download image")
		return errorResponse("Failed to download image."), nil
	}
	rec.Metric("MediaBytes", float64(len(data)), metrics.UnitBytes)

	storeStart := time.Now()
	key, err := h.uploader.Upload(ctx, data)
	rec.Stage("Store", time.Since(storeStart))
	if err != nil {
		log.Error().Err(err).Msg("Failed to store media")
		return errorResponse(err.Error()), nil
	}
	rec.Property("uploadKey", key)

	diagStart := time.Now()
	result := h.diagnose.Diagnose(ctx, data)
	rec.Stage("Diagnose", time.Since(diagStart))
	rec.Property("fallback", result.FromFallback)

	sendStart := time.Now()
	sid, err := h.sender.SendMessage(ctx, msg.From, result.Text)
	rec.Stage("Send", time.Since(sendStart))
	if err != nil {
		// Tolerated: the reply is best-effort once media is archived.
		log.Error().Err(err).Str("to", msg.From).Msg("Failed to send reply")
	} else {
		log.Info().Str("sid", sid).Str("to", msg.From).Bool("fallback", result.FromFallback).Msg("Reply sent")
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

// errorResponse shapes a terminal failure as a 500 with a single-field
// JSON error body.
func errorResponse(msg string) events.APIGatewayProxyResponse {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       string(b),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
