package objects

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store writes objects to an S3-compatible bucket whose contents are
// publicly readable. Object names are chosen by callers; the store only
// derives the public URL from the endpoint and bucket identity.
type Store struct {
	client *minio.Client
	bucket string
	base   string
}

// NewStore connects a Store to the given endpoint and bucket. No call is
// made until the first Put.
func NewStore(endpoint, accessKey, secretKey, bucket string, secure bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	return &Store{
		client: client,
		bucket: bucket,
		base:   client.EndpointURL().String() + "/" + bucket,
	}, nil
}

// Put writes content under name and returns the object's public URL.
func (s *Store) Put(ctx context.Context, name string, content []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("object store: put %s: %w", name, err)
	}
	return s.URLFor(name), nil
}

// URLFor returns the deterministic public URL for an object name.
func (s *Store) URLFor(name string) string {
	return s.base + "/" + name
}
