package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"codepad/internal/logging"
)

// S3Config points at an S3 compatible bucket. Endpoint is only needed for
// non-AWS services such as MinIO; empty credentials fall back to the default
// AWS credential chain.
type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	Prefix       string `yaml:"prefix"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

const hashMetadataKey = "sha256"

// S3 keeps the latest snapshot of each workspace as one compressed object.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
	codec  *Codec
}

// NewS3 builds a client from cfg.
func NewS3(ctx context.Context, cfg S3Config, codec *Codec) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 store: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		// checksums only when an operation requires them
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		codec:  codec,
	}, nil
}

func (b *S3) key(workspaceID string) string {
	return path.Join(b.prefix, "workspaces", workspaceID+".json.zst")
}

func (b *S3) Load(ctx context.Context, workspaceID string) ([]byte, error) {
	key := b.key(workspaceID)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	blob, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return b.codec.verify(blob, out.Metadata[hashMetadataKey])
}

func (b *S3) Save(ctx context.Context, workspaceID string, data []byte) error {
	key := b.key(workspaceID)
	blob := b.codec.Compress(data)

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(blob),
		ContentLength: aws.Int64(int64(len(blob))),
		ContentType:   aws.String("application/zstd"),
		Metadata:      map[string]string{hashMetadataKey: Hash(data)},
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	logging.L().Debug("S3 put snapshot", zap.String("key", key), zap.Int("size", len(blob)))
	return nil
}

func (b *S3) Close() error { return nil }
