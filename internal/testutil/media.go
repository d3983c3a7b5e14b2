package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vidtube/internal/media"
)

// In-memory media.Uploader for service and handler tests
type FakeUploader struct {
	// Returned by Upload when set
	UploadErr error

	// Per file failure, checked before UploadErr
	FailOn func(file media.File) error

	// Returned by Delete, "ok" if empty
	DeleteResult string

	// Reported for video uploads
	Duration decimal.Decimal

	mu       sync.Mutex
	uploaded []string
	deleted  []string
}

var _ media.Uploader = (*FakeUploader)(nil)

func (f *FakeUploader) Upload(ctx context.Context, file media.File) (media.Asset, error) {
	if f.FailOn != nil {
		if err := f.FailOn(file); err != nil {
			return media.Asset{}, err
		}
	}
	if f.UploadErr != nil {
		return media.Asset{}, f.UploadErr
	}
	if file.Body != nil {
		_, _ = io.Copy(io.Discard, file.Body)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	resource := "image"
	duration := decimal.Zero
	if strings.HasPrefix(file.ContentType, "video/") {
		resource = "video"
		duration = f.Duration
	}

	url := fmt.Sprintf("https://media.test/demo/%s/upload/v1/%d-%s", resource, len(f.uploaded)+1, file.Name)
	f.uploaded = append(f.uploaded, url)

	return media.Asset{URL: url, ResourceType: resource, Duration: duration}, nil
}

func (f *FakeUploader) Delete(ctx context.Context, assetURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, assetURL)
	if f.DeleteResult != "" {
		return f.DeleteResult, nil
	}
	return "ok", nil
}

func (f *FakeUploader) Uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploaded...)
}

func (f *FakeUploader) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}
