// Package presign issues presigned object URLs against S3-compatible storage.
// It is used to assemble task descriptors for functions run outside the platform.
package presign

import (
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

var (
	ErrInvalidTTL = errors.New("presign: ttl must be positive")
	ErrEmptyKey   = errors.New("presign: empty object key")
	ErrNoBucket   = errors.New("presign: bucket is required")
)

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PathStyle addresses the bucket in the path, which MinIO and most local stores need.
	PathStyle bool
}

// Presigner creates presigned GET and PUT URLs.
type Presigner interface {
	PresignGet(key string, ttl time.Duration) (string, error)
	PresignPut(key string, ttl time.Duration) (string, error)
}

type s3Presigner struct {
	svc    *s3.S3
	bucket string
}

// NewS3Presigner builds a presigner. Signing happens locally, no request is sent.
func NewS3Presigner(cfg S3Config) (Presigner, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	awsCfg := aws.NewConfig().
		WithRegion(cfg.Region).
		WithS3ForcePathStyle(cfg.PathStyle)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("presign: create session: %w", err)
	}
	return &s3Presigner{svc: s3.New(sess), bucket: cfg.Bucket}, nil
}

func (p *s3Presigner) PresignGet(key string, ttl time.Duration) (string, error) {
	if err := validate(key, ttl); err != nil {
		return "", err
	}
	req, _ := p.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	return req.Presign(ttl)
}

func (p *s3Presigner) PresignPut(key string, ttl time.Duration) (string, error) {
	if err := validate(key, ttl); err != nil {
		return "", err
	}
	req, _ := p.svc.PutObjectRequest(&s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	return req.Presign(ttl)
}

func validate(key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
