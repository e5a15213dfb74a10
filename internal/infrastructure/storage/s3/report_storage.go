// Package s3 archives rendered reports and sample CSVs of analysis runs.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/infrastructure/awsclient"
)

// URLMode selects the kind of link returned for an archived artifact.
type URLMode string

const (
	URLModePresigned URLMode = "presigned"
	URLModePublic    URLMode = "public"
)

const (
	defaultPresignTTL = 24 * time.Hour
	// SigV4 presigned URLs cannot outlive a week.
	maxPresignTTL = 7 * 24 * time.Hour
)

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	URLMode         URLMode
	PresignedTTL    time.Duration
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignGetAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ReportStorage uploads run artifacts and returns the link shown by `history`.
// Object labels (run id, verdict, content hash) become S3 user metadata.
type ReportStorage struct {
	objects putObjectAPI
	presign presignGetAPI
	bucket  string
	ttl     time.Duration
	// link is set in public mode; otherwise every upload is presigned.
	link func(key string) string
}

var _ port.ReportStorage = (*ReportStorage)(nil)

func NewReportStorage(ctx context.Context, cfg Config) (*ReportStorage, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	ttl := cfg.PresignedTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	if ttl > maxPresignTTL {
		return nil, fmt.Errorf("s3 presigned ttl %s exceeds %s", ttl, maxPresignTTL)
	}

	mode := cfg.URLMode
	if mode == "" {
		mode = URLModePresigned
	}
	if mode != URLModePresigned && mode != URLModePublic {
		return nil, fmt.Errorf("unsupported s3 url mode: %s", mode)
	}

	awsCfg, err := awsclient.Load(ctx, awsclient.Options{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	storage := &ReportStorage{
		objects: client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		ttl:     ttl,
	}
	if mode == URLModePublic {
		storage.link = publicLink(bucket, awsCfg.Region, aws.ToString(awsCfg.BaseEndpoint), cfg.UsePathStyle)
	}
	return storage, nil
}

// PutObject uploads one artifact and returns a link for reading it back.
func (s *ReportStorage) PutObject(ctx context.Context, object port.ArchiveObject) (string, error) {
	key := strings.TrimLeft(strings.TrimSpace(object.Key), "/")
	if key == "" {
		return "", errors.New("object key is required")
	}

	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(object.Body),
		ContentLength: aws.Int64(int64(len(object.Body))),
		ContentType:   aws.String(object.ContentType),
		Metadata:      object.Labels,
	})
	if err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", s.bucket, key, err)
	}

	if s.link != nil {
		return s.link(key), nil
	}

	signed, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", s.bucket, key, err)
	}
	return signed.URL, nil
}

// publicLink builds anonymous-read URLs: the AWS virtual-hosted form without
// a custom endpoint, otherwise the endpoint in path or host style.
func publicLink(bucket, region, endpoint string, pathStyle bool) func(string) string {
	if endpoint == "" {
		return func(key string) string {
			return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, escapeKey(key))
		}
	}

	scheme, host := "https", endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		scheme, host = u.Scheme, u.Host
	}

	if pathStyle {
		return func(key string) string {
			return fmt.Sprintf("%s://%s/%s/%s", scheme, host, bucket, escapeKey(key))
		}
	}
	return func(key string) string {
		return fmt.Sprintf("%s://%s.%s/%s", scheme, bucket, host, escapeKey(key))
	}
}

// escapeKey escapes each path segment and keeps the separators.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
