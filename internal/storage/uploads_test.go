package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var keyPattern = regexp.MustCompile(`^uploads/[0-9a-f]{32}\.jpg$`)

type fakePutObjectAPI struct {
	err   error
	calls []*s3.PutObjectInput
}

func (f *fakePutObjectAPI) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestNewUploadKey_Format(t *testing.T) {
	key := NewUploadKey()
	if !keyPattern.MatchString(key) {
		t.Errorf("key %q does not match uploads/<32 hex>.jpg", key)
	}
}

func TestNewUploadKey_FreshPerCall(t *testing.T) {
	if NewUploadKey() == NewUploadKey() {
		t.Error("two generated keys should not collide")
	}
}

func TestUpload(t *testing.T) {
	api := &fakePutObjectAPI{}
	u := NewUploader(api, "leafdoctor-media")

	key, err := u.Upload(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !keyPattern.MatchString(key) {
		t.Errorf("returned key %q does not match uploads/<32 hex>.jpg", key)
	}

	if len(api.calls) != 1 {
		t.Fatalf("expected one PutObject call, got %d", len(api.calls))
	}
	in := api.calls[0]
	if *in.Bucket != "leafdoctor-media" {
		t.Errorf("unexpected bucket: %s", *in.Bucket)
	}
	if *in.Key != key {
		t.Errorf("PutObject key %s does not match returned key %s", *in.Key, key)
	}
	if *in.ContentType != "image/jpeg" {
		t.Errorf("unexpected content type: %s", *in.ContentType)
	}
	body, _ := io.ReadAll(in.Body)
	if string(body) != "jpeg-bytes" {
		t.Errorf("unexpected object body: %s", body)
	}
}

func TestUpload_FreshKeyPerInvocation(t *testing.T) {
	api := &fakePutObjectAPI{}
	u := NewUploader(api, "leafdoctor-media")

	k1, err := u.Upload(context.Background(), []byte("same-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k2, err := u.Upload(context.Background(), []byte("same-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k1 == k2 {
		t.Errorf("identical input produced identical keys: %s", k1)
	}
}

func TestUpload_Error(t *testing.T) {
	api := &fakePutObjectAPI{err: errors.New("access denied")}
	u := NewUploader(api, "leafdoctor-media")

	if _, err := u.Upload(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error from failed PutObject")
	}
}
