package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"bananaforge/internal/domain"
)

// S3Config holds the settings for an S3 or S3-compatible object store.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

func (c S3Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("storage: bucket is required")
	}
	return nil
}

// S3Store implements RemoteStore on top of AWS S3. Folders are modeled as
// key prefixes: folder "abc" holds keys "abc/<name>".
type S3Store struct {
	client *s3.Client
	cfg    S3Config
}

var _ RemoteStore = (*S3Store)(nil)

// NewS3Store builds an S3-backed store. Credentials come from the default
// AWS chain unless explicit keys are configured.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	if awsCfg.Region == "" && cfg.Endpoint == "" {
		awsCfg.Region = "us-east-1"
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, cfg: cfg}, nil
}

// ListFolder returns every object directly under the folder prefix.
func (s *S3Store) ListFolder(ctx context.Context, folderID string) ([]Object, error) {
	prefix := folderPrefix(folderID)

	var out []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.wrapError("ListFolder", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			out = append(out, Object{
				Key:  key,
				Name: name,
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	return out, nil
}

// Upload stores data under the folder and returns the full object key.
func (s *S3Store) Upload(ctx context.Context, folderID, name string, data []byte, contentType string) (string, error) {
	key := folderPrefix(folderID) + name
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", s.wrapError("Upload", key, err)
	}
	return key, nil
}

// Rename moves an object within a folder. S3 has no rename primitive, so
// this copies to the new key and deletes the old one.
func (s *S3Store) Rename(ctx context.Context, folderID, oldName, newName string) error {
	prefix := folderPrefix(folderID)
	oldKey := prefix + oldName
	newKey := prefix + newName

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.cfg.Bucket),
		CopySource: aws.String(s.cfg.Bucket + "/" + oldKey),
		Key:        aws.String(newKey),
	})
	if err != nil {
		return s.wrapError("Rename", oldKey, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(oldKey),
	})
	if err != nil {
		return s.wrapError("Rename", oldKey, err)
	}
	return nil
}

// ObjectURL returns a stable HTTP URL for an object. Path-style URLs are
// used when a custom endpoint is configured.
func (s *S3Store) ObjectURL(folderID, name string) string {
	key := folderPrefix(folderID) + name
	if s.cfg.Endpoint != "" {
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	}
	region := s.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, region, key)
}

func folderPrefix(folderID string) string {
	folderID = strings.Trim(strings.TrimSpace(folderID), "/")
	if folderID == "" {
		return ""
	}
	return folderID + "/"
}

// wrapError maps SDK errors onto the storage sentinel so callers classify
// remote failures uniformly.
func (s *S3Store) wrapError(op, key string, err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s %s: object not found", domain.ErrStorageFailure, op, key)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s %s: %s", domain.ErrStorageFailure, op, key, apiErr.ErrorCode())
	}
	return fmt.Errorf("%w: %s %s: %v", domain.ErrStorageFailure, op, key, err)
}
