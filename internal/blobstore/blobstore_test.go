package blobstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/blobstore"
)

func TestLocalProvider_UploadAndSign(t *testing.T) {
	p, err := blobstore.NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	uri, err := p.UploadRaw(context.Background(), "tenant-a", "awb-123.pdf", []byte("hello"), "application/pdf")
	require.NoError(t, err)
	assert.Contains(t, uri, "file://raw/tenant-a/")
	assert.Contains(t, uri, "awb-123.pdf")

	signed, err := p.GenerateSignedURL(context.Background(), uri)
	require.NoError(t, err)
	assert.Contains(t, signed, "expires=")
}

func TestLocalProvider_SignNonFileURIFails(t *testing.T) {
	p, err := blobstore.NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	_, err = p.GenerateSignedURL(context.Background(), "s3://bucket/key")
	assert.Error(t, err)
}

func TestMemoryProvider_RoundTrip(t *testing.T) {
	p := blobstore.NewMemoryProvider()

	uri, err := p.UploadRaw(context.Background(), "tenant-a", "f.pdf", []byte("content"), "application/pdf")
	require.NoError(t, err)

	content, ok := p.Get(uri)
	require.True(t, ok)
	assert.Equal(t, "content", string(content))

	_, err = p.GenerateSignedURL(context.Background(), "mem://unknown")
	assert.Error(t, err)
}
