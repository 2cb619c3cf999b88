package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// Supabase storage lists at most this many objects per call.
const supabaseListLimit = 1000

// SupabaseStore publishes objects to a public Supabase Storage bucket.
type SupabaseStore struct {
	client  *storage_go.Client
	bucket  string
	baseURL string
}

func NewSupabaseStore(supabaseURL, serviceRoleKey, bucket string) (*SupabaseStore, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client, err := supabase.NewClient(baseURL, serviceRoleKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &SupabaseStore{
		client:  client.Storage,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

func (s *SupabaseStore) Put(_ context.Context, key string, r io.Reader, contentType string) error {
	if err := validKey(key); err != nil {
		return err
	}
	upsert := true
	_, err := s.client.UploadFile(s.bucket, key, r, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *SupabaseStore) Remove(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.client.RemoveFile(s.bucket, keys); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}
	return nil
}

func (s *SupabaseStore) RemovePrefix(ctx context.Context, prefix string) error {
	dir := strings.TrimSuffix(prefix, "/")
	for {
		files, err := s.client.ListFiles(s.bucket, dir, storage_go.FileSearchOptions{
			Limit: supabaseListLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to list files: %w", err)
		}
		if len(files) == 0 {
			return nil
		}

		paths := make([]string, len(files))
		for i, file := range files {
			paths[i] = dir + "/" + file.Name
		}
		if err := s.Remove(ctx, paths...); err != nil {
			return err
		}
		if len(files) < supabaseListLimit {
			return nil
		}
	}
}

func (s *SupabaseStore) PublicPath(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}
