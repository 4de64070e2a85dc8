// Package webhook implements the Twilio inbound-message pipeline: it decodes
// the API Gateway proxy event, extracts the media reference from the
// multipart form body, and sequences media download, S3 archival, vision
// diagnosis, and the WhatsApp reply.
package webhook

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// ValidationError marks a terminal request-shape failure: a missing
// Content-Type header or missing required form fields. The message is
// returned verbatim in the error response body.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// DecodePayload turns the raw proxy event into the webhook body bytes and
// the content type of the body. The body is base64-decoded when the
// dispatcher flagged it as encoded, otherwise taken as UTF-8 text. Header
// lookup is case-insensitive.
func DecodePayload(req events.APIGatewayProxyRequest) ([]byte, string, error) {
	var body []byte
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("decode base64 body: %w", err)
		}
		body = decoded
	} else {
		body = []byte(req.Body)
	}

	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		headers[strings.ToLower(k)] = v
	}

	contentType := headers["content-type"]
	if contentType == "" {
		return nil, "", &ValidationError{Reason: "Missing Content-Type header."}
	}

	return body, contentType, nil
}
