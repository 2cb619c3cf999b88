// Package storage publishes page images to the configured object store and
// manages the local staging area archives are extracted into.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"mangashelf-backend/internal/config"
)

type Store interface {
	// Put writes the object under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Remove deletes the given keys. Missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
	RemovePrefix(ctx context.Context, prefix string) error
	// PublicPath is the path or URL clients use to fetch key.
	PublicPath(key string) string
}

func VolumePrefix(volumeID int64) string {
	return fmt.Sprintf("volumes/%d/", volumeID)
}

func PageKey(volumeID int64, filename string) string {
	return VolumePrefix(volumeID) + filename
}

// KeyForImagePath recovers the storage key of a page image from its public
// path. Paths that do not belong to the volume yield false.
func KeyForImagePath(volumeID int64, imagePath string) (string, bool) {
	name := path.Base(imagePath)
	if name == "." || name == "/" || name == "" {
		return "", false
	}
	key := PageKey(volumeID, name)
	if !strings.HasSuffix(imagePath, "/"+key) {
		return "", false
	}
	return key, true
}

func ContentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid storage key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("invalid storage key %q", key)
		}
	}
	return nil
}

// New builds the store selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case config.StorageLocal:
		return NewLocalStore(cfg.UploadDir)
	case config.StorageSupabase:
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseStorageBucket)
	case config.StorageS3:
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}
