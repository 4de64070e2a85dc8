// Package storage archives downloaded media to S3. Objects are written once
// under a random key and never read back by the pipeline; they exist as an
// audit trail of what was diagnosed.
package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	uploadPrefix      = "uploads/"
	uploadContentType = "image/jpeg"
)

// PutObjectAPI is the slice of the S3 API the uploader needs.
// Satisfied by *s3.Client.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader writes media objects to a fixed bucket.
type Uploader struct {
	client PutObjectAPI
	bucket string
}

// NewUploader creates an Uploader for the given bucket.
func NewUploader(client PutObjectAPI, bucket string) *Uploader {
	return &Uploader{client: client, bucket: bucket}
}

// NewUploadKey returns a fresh object key of the form
// uploads/<32-hex-chars>.jpg. Uniqueness rests on the 128-bit random UUID;
// no collision check is performed.
func NewUploadKey() string {
	id := uuid.New()
	return fmt.Sprintf("%s%s.jpg", uploadPrefix, hex.EncodeToString(id[:]))
}

// Upload writes data under a freshly generated key and returns the key.
func (u *Uploader) Upload(ctx context.Context, data []byte) (string, error) {
	key := NewUploadKey()
	contentType := uploadContentType

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject %s: %w", key, err)
	}

	log.Info().Str("bucket", u.bucket).Str("key", key).Int("size", len(data)).Msg("Media stored to S3")
	return key, nil
}
