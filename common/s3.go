package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ErrBucketNotFound is returned by CheckBucket when the bucket does not exist
var ErrBucketNotFound = errors.New("bucket not found")

// S3Config selects the AWS profile and region. Empty values use the
// default credential chain.
type S3Config struct {
	Region  string
	Profile string
	// UsePathStyle is needed by most S3-compatible stores (MinIO, R2)
	UsePathStyle bool
}

// Object is one document to upload
type Object struct {
	Bucket       string
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// S3 is a narrow wrapper over the SDK client
type S3 struct {
	client *s3.Client
}

// NewS3 loads the AWS configuration and creates the client
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{
		client: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
		}),
	}, nil
}

// Put uploads obj, replacing any existing object under the same key
func (s *S3) Put(ctx context.Context, obj Object) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(obj.Bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(obj.Body),
		ContentLength: aws.Int64(int64(len(obj.Body))),
	}
	if obj.ContentType != "" {
		in.ContentType = aws.String(obj.ContentType)
	}
	if obj.CacheControl != "" {
		in.CacheControl = aws.String(obj.CacheControl)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", obj.Bucket, obj.Key, err)
	}
	return nil
}

// CheckBucket verifies the bucket exists and the credentials can reach it
func (s *S3) CheckBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	default:
		return fmt.Errorf("head bucket %s: %w", bucket, err)
	}
}

// HeadBucket reports a missing bucket as a bare 404 without an error code,
// so both forms are checked.
func isNotFound(err error) bool {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
