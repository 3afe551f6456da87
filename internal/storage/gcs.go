package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/quickcart/apiserver/config"
	"google.golang.org/api/option"
)

// Product images are small, so uploads below this size go out in a
// single request instead of a resumable session.
const gcsSingleRequestLimit = 8 << 20

// GCSClient stores objects in a Google Cloud Storage bucket.
type GCSClient struct {
	bucket    *storage.BucketHandle
	client    *storage.Client
	name      string
	projectID string
}

// NewGCSClient constructs a GCS client from config.
func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSClient{
		bucket:    client.Bucket(cfg.Bucket),
		client:    client,
		name:      cfg.Bucket,
		projectID: cfg.ProjectID,
	}, nil
}

// EnsureBucket creates the bucket when missing, which needs a project id.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	_, err := g.bucket.Attrs(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrBucketNotExist):
		return err
	case strings.TrimSpace(g.projectID) == "":
		return errors.New("gcs project id is required to create bucket")
	}
	return g.bucket.Create(ctx, g.projectID, &storage.BucketAttrs{
		UniformBucketLevelAccess: storage.UniformBucketLevelAccess{Enabled: true},
	})
}

func (g *GCSClient) PutObject(ctx context.Context, obj Object) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := g.bucket.Object(obj.Key).NewWriter(ctx)
	writer.ContentType = obj.ContentType
	writer.CacheControl = obj.CacheControl
	if obj.Size > 0 && obj.Size < gcsSingleRequestLimit {
		writer.ChunkSize = 0
	}
	if _, err := io.Copy(writer, obj.Body); err != nil {
		// Cancelling before Close aborts the partial upload.
		cancel()
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func (g *GCSClient) OpenObject(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return reader, nil
}

func (g *GCSClient) RemoveObject(ctx context.Context, key string) error {
	err := g.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}

func (g *GCSClient) Bucket() string { return g.name }

// Close releases the underlying client.
func (g *GCSClient) Close() error { return g.client.Close() }
