package repository

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
)

type awsRepository struct {
	client        *s3.Client
	preSignClient *s3.PresignClient
	presignExpiry time.Duration
}

func NewAwsRepository(awsClient *s3.Client, preSignClient *s3.PresignClient, presignExpiry time.Duration) jobs.AWSRepository {
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}
	return &awsRepository{
		client:        awsClient,
		preSignClient: preSignClient,
		presignExpiry: presignExpiry,
	}
}

func (a *awsRepository) PutObject(ctx context.Context, input models.UploadInput) (*s3.PutObjectOutput, error) {
	res, err := a.client.PutObject(
		ctx,
		&s3.PutObjectInput{
			Bucket:        &input.BucketName,
			Key:           &input.Key,
			ContentType:   &input.MimeType,
			ContentLength: &input.Size,
			Body:          input.File,
		},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "upload %s", input.Key)
	}
	return res, nil
}

func (a *awsRepository) GetPresignedURL(ctx context.Context, bucket, key string) (string, error) {
	req, err := a.preSignClient.PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: &bucket,
			Key:    &key,
		},
		s3.WithPresignExpires(a.presignExpiry),
	)
	if err != nil {
		return "", errors.Wrapf(err, "presign get %s", key)
	}
	return req.URL, nil
}

func (a *awsRepository) RemoveObject(ctx context.Context, bucket, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return errors.Wrapf(err, "remove %s", key)
	}
	return nil
}
