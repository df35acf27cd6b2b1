// Package media stores submission images in an S3-compatible bucket and
// hands back durable URLs for them.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"photowall/internal/gallery"
)

// Config describes the bucket to write to.
type Config struct {
	Endpoint  string // "minio:9000" or "https://s3.example.com"
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicURL is the base under which objects are reachable. Defaults to
	// <scheme>://<endpoint>/<bucket>.
	PublicURL string
	// Prefix is prepended to every object key.
	Prefix string
}

// objectAPI is the subset of *minio.Client the adapter needs.
type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// Store is the media upload adapter. It implements gallery.Uploader and
// gallery.Remover.
type Store struct {
	client    objectAPI
	bucket    string
	publicURL string
	prefix    string
}

var (
	_ gallery.Uploader = (*Store)(nil)
	_ gallery.Remover  = (*Store)(nil)
)

// normaliseEndpoint turns S3_ENDPOINT into the host:port minio-go expects.
// A bare "host:port" is plain HTTP; a URL must be http or https with no
// path, query or credentials.
func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("empty endpoint")
	}
	if !strings.Contains(raw, "://") {
		return raw, false, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
	case "https":
		secure = true
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	switch {
	case u.Host == "":
		return "", false, fmt.Errorf("endpoint %q has no host", raw)
	case u.User != nil:
		return "", false, errors.New("endpoint must not carry credentials; use S3_ACCESS_KEY")
	case u.Path != "" && u.Path != "/", u.RawQuery != "":
		return "", false, fmt.Errorf("endpoint %q must not contain a path or query", raw)
	}
	return u.Host, secure, nil
}

// New connects to the bucket described by cfg and checks that it exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("media storage configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	// Sanity check: bucket must exist.
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("media bucket does not exist: %s", cfg.Bucket)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		publicURL = scheme + "://" + endpoint + "/" + cfg.Bucket
	}

	return newStore(client, cfg.Bucket, publicURL, cfg.Prefix), nil
}

func newStore(client objectAPI, bucket, publicURL, prefix string) *Store {
	return &Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		prefix:    strings.Trim(prefix, "/"),
	}
}

// Upload writes f under a fresh, non-guessable key and returns its URL.
func (s *Store) Upload(ctx context.Context, f gallery.File) (string, error) {
	if len(f.Data) == 0 {
		return "", fmt.Errorf("file buffer is empty")
	}

	contentType := f.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(f.Data)
	}
	key := s.objectKey(f.Filename, contentType)

	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(f.Data),
		int64(len(f.Data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.publicURL + "/" + key, nil
}

// Remove deletes the object behind a URL previously returned by Upload.
func (s *Store) Remove(ctx context.Context, objectURL string) error {
	key, ok := strings.CutPrefix(objectURL, s.publicURL+"/")
	if !ok || key == "" {
		return fmt.Errorf("url %q is not served by this store", objectURL)
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// Ping checks that the bucket is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", s.bucket)
	}
	return nil
}

// objectKey builds "<prefix>/<uuid><ext>". The client filename only
// contributes its extension, which keeps keys free of path tricks.
func (s *Store) objectKey(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		ext = ""
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
				ext = exts[0]
			}
		}
	}
	name := uuid.NewString() + ext
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}
