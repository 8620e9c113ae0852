package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := &config.StorageConfig{
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		}
		_, err := NewS3ObjectStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("valid config creates storage", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:          "cv-documents",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			Endpoint:        "localhost:9000",
			UsePathStyle:    true,
		}
		s, err := NewS3ObjectStorage(cfg, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "cv-documents", s.GetBucket())
		assert.Equal(t, 15*time.Minute, s.presignExpiration)
	})

	t.Run("presign expiration option applies", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:          "cv-documents",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		}
		s, err := NewS3ObjectStorage(cfg, WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, s.presignExpiration)
	})
}

func TestS3ObjectStorage_GenerateDownloadURL(t *testing.T) {
	cfg := &config.StorageConfig{
		Bucket:          "cv-documents",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
	}
	s, err := NewS3ObjectStorage(cfg)
	require.NoError(t, err)

	t.Run("empty key rejected", func(t *testing.T) {
		_, _, err := s.GenerateDownloadURL(context.Background(), "", time.Minute)
		require.Error(t, err)
	})

	t.Run("presigning is local and succeeds", func(t *testing.T) {
		url, expiresAt, err := s.GenerateDownloadURL(context.Background(), "tenant/contacts/x/cv.pdf", 30*time.Minute)
		require.NoError(t, err)
		assert.Contains(t, url, "cv-documents")
		assert.Contains(t, url, "cv.pdf")
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 5*time.Second)
	})
}

func TestMemoryObjectStorage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryObjectStorage()

	t.Run("upload then exists and get", func(t *testing.T) {
		err := store.Upload(ctx, "acme/contacts/1/cv.pdf", strings.NewReader("%PDF-1.4"), "application/pdf")
		require.NoError(t, err)

		ok, err := store.ObjectExists(ctx, "acme/contacts/1/cv.pdf")
		require.NoError(t, err)
		assert.True(t, ok)

		data, ok := store.Get("acme/contacts/1/cv.pdf")
		require.True(t, ok)
		assert.Equal(t, "%PDF-1.4", string(data))
	})

	t.Run("download URL requires stored object", func(t *testing.T) {
		_, _, err := store.GenerateDownloadURL(ctx, "missing.pdf", time.Minute)
		require.Error(t, err)

		url, _, err := store.GenerateDownloadURL(ctx, "acme/contacts/1/cv.pdf", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "https://storage.example.com/download/acme/contacts/1/cv.pdf", url)
	})

	t.Run("delete removes object", func(t *testing.T) {
		require.NoError(t, store.DeleteObject(ctx, "acme/contacts/1/cv.pdf"))
		ok, err := store.ObjectExists(ctx, "acme/contacts/1/cv.pdf")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("empty key rejected everywhere", func(t *testing.T) {
		require.Error(t, store.Upload(ctx, "", strings.NewReader(""), ""))
		require.Error(t, store.DeleteObject(ctx, ""))
		_, err := store.ObjectExists(ctx, "")
		require.Error(t, err)
	})
}
