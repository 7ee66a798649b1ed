package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stemforge/api/internal/config"
)

// ObjectStore defines the artifact-store operations the service needs.
type ObjectStore interface {
	UploadFile(ctx context.Context, key, localPath string) error
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	ListFolders(ctx context.Context) ([]string, error)
	ListObjects(ctx context.Context, folder string) ([]string, error)
}

// StorageClient implements ObjectStore against an S3-compatible endpoint.
type StorageClient struct {
	s3Client   *s3.Client
	presigner  *s3.PresignClient
	bucketName string
}

// NewStorageClient creates a new storage client
func NewStorageClient(cfg *config.StorageConfig) (*StorageClient, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("storage configuration incomplete")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: endpoint}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	presigner := s3.NewPresignClient(s3Client)

	return &StorageClient{
		s3Client:   s3Client,
		presigner:  presigner,
		bucketName: cfg.BucketName,
	}, nil
}

// UploadFile uploads a local file to the bucket under key.
func (c *StorageClient) UploadFile(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentTypeFor(localPath)),
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// GetSignedURL generates a presigned URL for temporary read access
func (c *StorageClient) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	}

	presignedReq, err := c.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignedReq.URL, nil
}

// ListFolders returns the top-level folder names in the bucket.
func (c *StorageClient) ListFolders(ctx context.Context) ([]string, error) {
	out, err := c.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucketName),
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket: %w", err)
	}

	folders := make([]string, 0, len(out.CommonPrefixes))
	for _, p := range out.CommonPrefixes {
		folders = append(folders, strings.TrimSuffix(aws.ToString(p.Prefix), "/"))
	}
	sort.Strings(folders)
	return folders, nil
}

// ListObjects returns the object keys inside a named folder.
func (c *StorageClient) ListObjects(ctx context.Context, folder string) ([]string, error) {
	out, err := c.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucketName),
		Prefix: aws.String(folder + "/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folder, err)
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	sort.Strings(keys)
	return keys, nil
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
