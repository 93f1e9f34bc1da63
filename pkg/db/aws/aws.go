package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// NewAWSClient returns an s3 client and its presigner. A non-empty endpoint
// switches to path-style addressing for S3 compatible stores such as MinIO.
func NewAWSClient(ctx context.Context, endpoint, region, accessKey, secretKey string) (*s3.Client, *s3.PresignClient, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load aws configuration")
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = &endpoint
		}
	})
	return client, s3.NewPresignClient(client), nil
}
