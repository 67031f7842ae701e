package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/iesreza/hrdesk-backend/lib/crypto"
)

// PresignedURLExpiry bounds how long a download link handed to a browser works
const PresignedURLExpiry = 15 * time.Minute

// S3Config holds S3 configuration
type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

func LoadS3Config() S3Config {
	return S3Config{
		Bucket:    settings.Get("S3.BUCKET").String(),
		Endpoint:  settings.Get("S3.ENDPOINT").String(),
		Region:    settings.Get("S3.REGION").String(),
		AccessKey: settings.Get("S3.ACCESS_KEY").String(),
		SecretKey: crypto.Setting("S3.SECRET_KEY"),
	}
}

// S3Store keeps uploads in an S3 compatible bucket. Saved objects are
// referenced as /api/files/<key> and served through presigned redirects.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func NewS3Store(config S3Config) (*S3Store, error) {
	if config.Bucket == "" || config.Endpoint == "" || config.AccessKey == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("S3 configuration incomplete")
	}

	endpoint := config.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	cfg := aws.Config{
		Region:      config.Region,
		Credentials: credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, ""),
		EndpointResolverWithOptions: aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					SigningRegion:     region,
					HostnameImmutable: true,
				}, nil
			},
		),
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &S3Store{client: client, presign: s3.NewPresignClient(client), bucket: config.Bucket}, nil
}

func (s *S3Store) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return "/api/files/" + key, nil
}

func (s *S3Store) Delete(ctx context.Context, stored string) error {
	key := strings.TrimPrefix(stored, "/api/files/")
	if key == stored || key == "" {
		return fmt.Errorf("path %s is not an S3 object", stored)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// DownloadURL presigns a GET for key
func (s *S3Store) DownloadURL(ctx context.Context, key string) (string, error) {
	result, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(PresignedURLExpiry))
	if err != nil {
		return "", err
	}
	return result.URL, nil
}
