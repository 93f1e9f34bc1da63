package jobs

import (
	"context"

	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type AWSRepository interface {
	PutObject(ctx context.Context, input models.UploadInput) (*s3.PutObjectOutput, error)
	GetPresignedURL(ctx context.Context, bucket, key string) (string, error)
	RemoveObject(ctx context.Context, bucket, key string) error
}
