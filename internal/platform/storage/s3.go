// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config holds the connection settings for an S3-compatible bucket.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// s3API is the subset of the S3 client used by [S3Store].
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Store serves documents from a bucket. Locations are object keys.
type S3Store struct {
	client s3API
	bucket string
}

// NewS3Store builds an S3 client from cfg.
//
// Static credentials are used when both keys are set, otherwise the default
// AWS credential chain applies. A custom endpoint switches to path-style
// addressing, which MinIO and R2 expect.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, cfg.Bucket), nil
}

func newS3Store(client s3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Stat issues a HEAD request for the object.
func (store *S3Store) Stat(ctx context.Context, location string) (Object, error) {
	key, ok := objectKey(location)
	if !ok {
		return Object{}, ErrNotFound
	}

	output, err := store.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Object{}, translateS3Error(location, err)
	}

	object := Object{Location: location, Size: aws.ToInt64(output.ContentLength)}
	if output.LastModified != nil {
		object.ModTime = *output.LastModified
	}

	return object, nil
}

// OpenRange issues a ranged GET for exactly length bytes.
func (store *S3Store) OpenRange(ctx context.Context, location string, offset, length int64) (io.ReadCloser, error) {
	if offset < 0 || length < 0 {
		return nil, ErrInvalidRange
	}
	if length == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	key, ok := objectKey(location)
	if !ok {
		return nil, ErrNotFound
	}

	output, err := store.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		return nil, translateS3Error(location, err)
	}

	return output.Body, nil
}

// Ping checks that the bucket is reachable with the configured credentials.
func (store *S3Store) Ping(ctx context.Context) error {
	if _, err := store.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(store.bucket)}); err != nil {
		return fmt.Errorf("storage: head bucket %s: %w", store.bucket, err)
	}
	return nil
}

// objectKey accepts either a bare key or an s3://bucket/key location.
func objectKey(location string) (string, bool) {
	key := location
	if rest, found := strings.CutPrefix(location, "s3://"); found {
		_, key, found = strings.Cut(rest, "/")
		if !found {
			return "", false
		}
	}

	key = strings.TrimPrefix(key, "/")
	return key, key != ""
}

// translateS3Error maps missing-object responses to [ErrNotFound].
func translateS3Error(location string, err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var apiError smithy.APIError

	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		return ErrNotFound
	case errors.As(err, &apiError) && apiError.ErrorCode() == "InvalidRange":
		return ErrInvalidRange
	default:
		return fmt.Errorf("storage: s3 %s: %w", location, err)
	}
}
