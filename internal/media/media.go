// Package media removes uploaded images (avatars and banners) when the
// account or community they belong to is deleted.
package media

import (
	"context"
	"fmt"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Kind string

const (
	AccountAvatar   Kind = "avatars"
	AccountBanner   Kind = "banners"
	CommunityAvatar Kind = "community_avatars"
	CommunityBanner Kind = "community_banners"
)

// Key is the object name of one uploaded image.
func Key(kind Kind, owner uint64) string {
	return string(kind) + "/" + strconv.FormatUint(owner, 10)
}

// Remover deletes uploaded objects. Missing objects are not an error.
type Remover interface {
	Remove(ctx context.Context, keys ...string) error
}

type Noop struct{}

func (Noop) Remove(context.Context, ...string) error { return nil }

type MinioRemover struct {
	client *minio.Client
	bucket string
}

func NewMinioRemover(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioRemover, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioRemover{client: client, bucket: bucket}, nil
}

func (r *MinioRemover) Remove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		err := r.client.RemoveObject(ctx, r.bucket, key, minio.RemoveObjectOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}
