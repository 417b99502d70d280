// Package blobstore implements the StorageProvider capability contract
// (pkg/contracts): a local-filesystem backend for real deployments and an
// in-memory backend for tests, mirroring the archiver/driver shape the
// teacher uses for its retention storage backends.
package blobstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// LocalProvider writes raw document bytes under a root directory and mints
// file:// URIs. It is the one fully implemented StorageProvider backend; an
// "s3://"-scheme cloud backend is contract-only by design (§4.2) since no
// real object-store SDK call belongs in this platform's dependency surface.
type LocalProvider struct {
	root string
}

// NewLocalProvider creates (if needed) root and returns a provider rooted there.
func NewLocalProvider(root string) (*LocalProvider, error) {
	if root == "" {
		root = "/tmp/nexuscargo-storage"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalProvider{root: root}, nil
}

// UploadRaw writes content under raw/{tenantID}/{random-hex}-{objectName} beneath root
// and returns a file:// URI. The random prefix mirrors §4.7 step 2's object
// naming scheme and avoids collisions between documents sharing a file name.
func (p *LocalProvider) UploadRaw(_ context.Context, tenantID, objectName string, content []byte, contentType string) (string, error) {
	prefix := randomHex(8)
	relPath := filepath.Join("raw", tenantID, prefix+"-"+sanitize(objectName))
	fullPath := filepath.Join(p.root, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}

	uri := "file://" + filepath.ToSlash(relPath)
	log.Debug().Str("uri", uri).Str("content_type", contentType).Int("bytes", len(content)).Msg("uploaded raw document")
	return uri, nil
}

// GenerateSignedURL returns a short-lived (15 minute) pseudo-signed URL for
// a file:// URI. There is no real signing authority for the local backend;
// the expiry query param documents the intended semantics for callers and
// tests that assert on TTL without requiring a real HTTP file server.
func (p *LocalProvider) GenerateSignedURL(_ context.Context, uri string) (string, error) {
	if !strings.HasPrefix(uri, "file://") {
		return "", fmt.Errorf("local provider cannot sign non-file uri: %s", uri)
	}
	expiry := time.Now().UTC().Add(15 * time.Minute).Unix()
	return fmt.Sprintf("%s?expires=%d", uri, expiry), nil
}

func sanitize(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, "/", "_"), "..", "_")
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "0000000000000000"[:n*2]
	}
	return hex.EncodeToString(b)
}

// MemoryProvider keeps uploaded content in memory, for tests that need a
// StorageProvider without touching the filesystem.
type MemoryProvider struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryProvider returns an empty in-memory storage provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{objects: make(map[string][]byte)}
}

func (p *MemoryProvider) UploadRaw(_ context.Context, tenantID, objectName string, content []byte, _ string) (string, error) {
	uri := fmt.Sprintf("mem://%s/%s-%s", tenantID, randomHex(8), sanitize(objectName))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[uri] = append([]byte(nil), content...)
	return uri, nil
}

func (p *MemoryProvider) GenerateSignedURL(_ context.Context, uri string) (string, error) {
	p.mu.RLock()
	_, ok := p.objects[uri]
	p.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object not found: %s", uri)
	}
	expiry := time.Now().UTC().Add(15 * time.Minute).Unix()
	return fmt.Sprintf("%s?expires=%d", uri, expiry), nil
}

// Get returns the raw bytes for a URI previously returned by UploadRaw, used
// by tests that need to assert on round-tripped content.
func (p *MemoryProvider) Get(uri string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.objects[uri]
	return b, ok
}
