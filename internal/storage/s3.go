package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Storage stores objects in an S3 bucket or any S3-compatible endpoint.
// Cloudflare R2 uses this driver with an explicit endpoint and path-style
// addressing.
type S3Storage struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	baseURL  string
}

// NewS3Storage builds the driver from the configuration.
func NewS3Storage(configuration Config) (*S3Storage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(configuration.Region),
	}
	if configuration.Backend == BackendR2 {
		// R2 ignores regions and requires path-style requests.
		awsConfig.Region = aws.String("auto")
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	if configuration.Endpoint != "" {
		awsConfig.Endpoint = aws.String(configuration.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	if configuration.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(configuration.AccessKey, configuration.SecretKey, "")
	}

	awsSession, sessionErr := session.NewSession(awsConfig)
	if sessionErr != nil {
		return nil, fmt.Errorf("storage.s3.init: %w", sessionErr)
	}

	baseURL := strings.TrimRight(configuration.BaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", configuration.Bucket)
	}
	return &S3Storage{
		client:   s3.New(awsSession),
		uploader: s3manager.NewUploader(awsSession),
		bucket:   configuration.Bucket,
		baseURL:  baseURL,
	}, nil
}

// Save uploads the object through the s3manager uploader.
func (remote *S3Storage) Save(ctx context.Context, key string, reader io.Reader, contentType string) error {
	_, uploadErr := remote.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(remote.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if uploadErr != nil {
		return fmt.Errorf("storage.s3.save: %w", uploadErr)
	}
	return nil
}

// Open streams the object body.
func (remote *S3Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	result, getErr := remote.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(remote.bucket),
		Key:    aws.String(key),
	})
	if getErr != nil {
		return nil, fmt.Errorf("storage.s3.open: %w", getErr)
	}
	return result.Body, nil
}

// Delete removes the object.
func (remote *S3Storage) Delete(ctx context.Context, key string) error {
	_, deleteErr := remote.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(remote.bucket),
		Key:    aws.String(key),
	})
	if deleteErr != nil {
		return fmt.Errorf("storage.s3.delete: %w", deleteErr)
	}
	return nil
}

// PublicURL maps the key under the public base URL.
func (remote *S3Storage) PublicURL(key string) string {
	return remote.baseURL + "/" + key
}
