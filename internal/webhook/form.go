package webhook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
)

// maxFieldSize bounds a single form field value (1 MB). Twilio webhook
// fields are short strings; anything larger is not a webhook we recognise.
const maxFieldSize = 1 << 20

// MediaMessage is the typed view of the inbound webhook form: the URL of
// the first media attachment and the sender address. Attachments beyond
// MediaUrl0 are ignored.
type MediaMessage struct {
	MediaURL string
	From     string
}

// ParseMediaMessage parses the decoded webhook body as multipart/form-data
// and extracts the required fields. Fields may appear in any order; unknown
// fields are skipped. Missing or empty MediaUrl0 or From is a
// ValidationError.
func ParseMediaMessage(body []byte, contentType string) (MediaMessage, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return MediaMessage{}, fmt.Errorf("parse content type: %w", err)
	}
	boundary := params["boundary"]
	if mediaType != "multipart/form-data" || boundary == "" {
		return MediaMessage{}, fmt.Errorf("unexpected content type %q", mediaType)
	}

	var msg MediaMessage
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return MediaMessage{}, fmt.Errorf("parse multipart form: %w", err)
		}

		name := part.FormName()
		if name != "MediaUrl0" && name != "From" {
			part.Close()
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
		part.Close()
		if err != nil {
			return MediaMessage{}, fmt.Errorf("read form field %s: %w", name, err)
		}
		switch name {
		case "MediaUrl0":
			msg.MediaURL = string(value)
		case "From":
			msg.From = string(value)
		}
	}

	if msg.MediaURL == "" || msg.From == "" {
		return MediaMessage{}, &ValidationError{Reason: "Missing MediaUrl0 or From"}
	}
	return msg, nil
}
