package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// filesAPIBeta is the beta header required by the Files API.
const filesAPIBeta = "files-api-2025-04-14"

// Uploader pushes local files to the provider and deletes them again.
type Uploader interface {
	Upload(ctx context.Context, path string) (UploadedFile, error)
	Delete(ctx context.Context, id string) error
}

// AnthropicUploader implements Uploader against the Anthropic Files API.
type AnthropicUploader struct {
	client   anthropic.Client
	maxBytes int64
}

// NewAnthropicUploader creates an uploader with the given size cap in bytes.
func NewAnthropicUploader(apiKey string, maxBytes int64) *AnthropicUploader {
	return &AnthropicUploader{
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHeader("anthropic-beta", filesAPIBeta),
		),
		maxBytes: maxBytes,
	}
}

// Upload sends the file at path to the Files API. The size limit and mime
// class are checked locally before any bytes leave the machine.
func (u *AnthropicUploader) Upload(ctx context.Context, path string) (UploadedFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > u.maxBytes {
		return UploadedFile{}, fmt.Errorf("%s is %d bytes (limit %d): %w",
			filepath.Base(abs), info.Size(), u.maxBytes, ErrFileTooLarge)
	}

	mimeType, err := ClassifyMime(abs)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("%s: %w", filepath.Base(abs), err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	meta, err := u.client.Beta.Files.Upload(ctx, anthropic.BetaFileUploadParams{
		File: anthropic.File(f, filepath.Base(abs), mimeType),
	})
	if err != nil {
		return UploadedFile{}, fmt.Errorf("upload %s: %w", filepath.Base(abs), err)
	}

	return UploadedFile{
		ID:         meta.ID,
		Name:       filepath.Base(abs),
		LocalPath:  abs,
		Size:       info.Size(),
		MimeType:   mimeType,
		UploadedAt: time.Now(),
	}, nil
}

// Delete removes the remote file. Conversation history referencing the id is
// unaffected; the id simply can no longer be re-attached.
func (u *AnthropicUploader) Delete(ctx context.Context, id string) error {
	if _, err := u.client.Beta.Files.Delete(ctx, id, anthropic.BetaFileDeleteParams{}); err != nil {
		return fmt.Errorf("delete file %s: %w", id, err)
	}
	return nil
}
