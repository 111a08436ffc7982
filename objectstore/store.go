// Package objectstore stores gallery objects in an S3-compatible bucket using
// the AWS SDK for Go v2.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/sagarc03/gallery"
)

// API is the subset of the S3 client the store uses.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ClientOptions tune the S3 client for non-AWS endpoints.
type ClientOptions struct {
	// Endpoint overrides the regional endpoint, e.g. a MinIO URL.
	Endpoint     string
	UsePathStyle bool
}

// NewClient builds an S3 client from an AWS config.
// Request checksums are only sent when an operation requires them, which
// keeps S3-compatible servers that reject trailing checksums working.
func NewClient(cfg aws.Config, opts ClientOptions) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
}

// Store provides bucket storage operations.
type Store struct {
	client API
	bucket string
}

func New(client API, bucket string) (*Store, error) {
	if client == nil {
		return nil, errors.New("new object store: client is required")
	}
	if bucket == "" {
		return nil, errors.New("new object store: bucket cannot be empty")
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Put uploads content under key. size is sent as Content-Length when it is
// not negative.
func (s *Store) Put(ctx context.Context, key string, content io.Reader, size int64, contentType string) error {
	if !gallery.IsValidKey(key) {
		return fmt.Errorf("put %s: %w: invalid key", key, gallery.ErrInvalidInput)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	return nil
}

// Delete removes the object under key. S3 deletes succeed for missing keys,
// so the object is looked up first to report gallery.ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	if !gallery.IsValidKey(key) {
		return fmt.Errorf("delete %s: %w: invalid key", key, gallery.ErrInvalidInput)
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return gallery.ErrNotFound
		}
		return fmt.Errorf("delete %s: head: %w", key, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return gallery.ErrNotFound
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

// List returns every object whose key starts with prefix, following
// continuation tokens until the listing is exhausted.
func (s *Store) List(ctx context.Context, prefix string) ([]gallery.ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	objects := []gallery.ObjectInfo{}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			info := gallery.ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			objects = append(objects, info)
		}
	}

	return objects, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}

	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
