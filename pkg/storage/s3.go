package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	sifterrors "github.com/sift-dev/sift/internal/errors"
)

// S3API is the slice of the S3 client the adapter uses. *s3.Client
// satisfies it; tests substitute a fake.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 stores each key as one object under a prefix. Shared filter state
// for fleets of stateless service instances.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	adapter := storage.NewS3(s3.NewFromConfig(cfg), "my-bucket", "filters/")
type S3 struct {
	client S3API
	bucket string
	prefix string
}

// NewS3 creates the adapter. prefix may be empty; a non-empty prefix
// should end with "/".
func NewS3(client S3API, bucket, prefix string) *S3 {
	return &S3{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *S3) key(key string) string {
	return s.prefix + key
}

func (s *S3) GetItem(ctx context.Context, key string) (string, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return "", false, nil
		}
		return "", false, sifterrors.FromError(err, "E040")
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, sifterrors.FromError(err, "E040")
	}
	return string(raw), true, nil
}

func (s *S3) SetItem(ctx context.Context, key, value string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(key)),
		Body:        bytes.NewReader([]byte(value)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return sifterrors.FromError(err, "E041")
	}
	return nil
}

func (s *S3) RemoveItem(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return sifterrors.FromError(err, "E041")
	}
	return nil
}

// Clear deletes every object under the prefix. With an empty prefix this
// empties the bucket; give each engine its own prefix.
func (s *S3) Clear(ctx context.Context) error {
	var continuation *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return sifterrors.FromError(err, "E041")
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || !strings.HasPrefix(*obj.Key, s.prefix) {
				continue
			}
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			}); err != nil {
				return sifterrors.FromError(err, "E041")
			}
		}

		if page.IsTruncated == nil || !*page.IsTruncated {
			return nil
		}
		continuation = page.NextContinuationToken
	}
}

var _ Adapter = (*S3)(nil)
