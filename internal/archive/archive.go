// Package archive keeps a copy of raw snapshot payloads in S3-compatible
// object storage. Archiving is best-effort: failures are logged by the
// caller and never affect the import pipeline's state.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds S3-compatible storage settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

// S3Archive stores snapshot payloads as JSON objects under
// snapshots/{userID}/{snapshotID}.json.
type S3Archive struct {
	client *s3.Client
	bucket string
}

// New creates an S3-compatible archive client.
func New(cfg *Config) (*S3Archive, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpointURL := fmt.Sprintf("%s://%s", scheme, normalizeEndpoint(cfg.Endpoint))

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpointURL)
		o.UsePathStyle = true // path-style works across S3-compatible services
	})

	return &S3Archive{client: client, bucket: cfg.Bucket}, nil
}

// normalizeEndpoint removes protocol prefix and path from endpoint.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}
	return strings.TrimSuffix(endpoint, "/")
}

// Key returns the object key for a user's snapshot payload.
func Key(userID, snapshotID string) string {
	return fmt.Sprintf("snapshots/%s/%s.json", userID, snapshotID)
}

// Store uploads the raw payload for a completed import.
func (a *S3Archive) Store(ctx context.Context, userID, snapshotID string, payload json.RawMessage) error {
	key := Key(userID, snapshotID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive snapshot %s: %w", key, err)
	}
	return nil
}

// Fetch downloads an archived payload, mainly for operational inspection.
func (a *S3Archive) Fetch(ctx context.Context, userID, snapshotID string) (json.RawMessage, error) {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(Key(userID, snapshotID)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archived snapshot: %w", err)
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return nil, fmt.Errorf("failed to read archived snapshot: %w", err)
	}
	return buf.Bytes(), nil
}
