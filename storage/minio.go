package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pulsefm/config"
	"pulsefm/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const archivePrefix = "tracks/"

// Archive is the optional cold tier of the audio cache. When
// configured, every cached acquisition is mirrored into the bucket and
// cache misses check the bucket before the provider chain runs.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive connects to MinIO and ensures the bucket exists. Returns
// (nil, nil) when no endpoint is configured; callers treat a nil
// archive as disabled.
func NewArchive(cfg *config.Config) (*Archive, error) {
	if cfg.MinioEndpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created audio archive bucket", logger.String("bucket", cfg.MinioBucket))
	}

	return &Archive{client: client, bucket: cfg.MinioBucket}, nil
}

// objectName maps a cache file name to its archive object.
func objectName(fileName string) string {
	return archivePrefix + fileName
}

// Upload mirrors a cached audio file into the bucket.
func (a *Archive) Upload(ctx context.Context, localPath string) error {
	if a == nil {
		return nil
	}

	name := objectName(filepath.Base(localPath))
	_, err := a.client.FPutObject(ctx, a.bucket, name, localPath, minio.PutObjectOptions{
		ContentType: "audio/mpeg",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return nil
}

// Fetch downloads an archived audio file to destPath. Returns false
// when the object does not exist.
func (a *Archive) Fetch(ctx context.Context, fileName, destPath string) (bool, error) {
	if a == nil {
		return false, nil
	}

	name := objectName(fileName)
	if _, err := a.client.StatObject(ctx, a.bucket, name, minio.StatObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return false, fmt.Errorf("failed to create destination dir: %w", err)
	}
	if err := a.client.FGetObject(ctx, a.bucket, name, destPath, minio.GetObjectOptions{}); err != nil {
		return false, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	return true, nil
}

// List returns the archived object names under the track prefix.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	if a == nil {
		return nil, nil
	}

	var names []string
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    archivePrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return names, obj.Err
		}
		names = append(names, obj.Key)
	}
	return names, nil
}

// Remove deletes an archived audio file. Missing objects are not an
// error.
func (a *Archive) Remove(ctx context.Context, fileName string) error {
	if a == nil {
		return nil
	}
	return a.client.RemoveObject(ctx, a.bucket, objectName(fileName), minio.RemoveObjectOptions{})
}
