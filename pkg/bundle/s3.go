package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures the S3-backed bundle store. Works against AWS or MinIO.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3Store persists bundles in an object bucket so hub and spokes can share a
// distribution point without direct connectivity.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates an S3-backed bundle store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	var awsCfg aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// Static credentials (MinIO or AWS with explicit keys).
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		// Default credential chain (IAM roles, env vars, etc.).
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + name
}

func (s *S3Store) bundleKey(version string) string {
	return s.key("bundle-" + version + ".json")
}

// Put stores a new bundle version and marks it latest.
func (s *S3Store) Put(ctx context.Context, b *Bundle) error {
	if b == nil {
		return ErrNilBundle
	}

	// Append-only: refuse to overwrite a published version.
	if _, err := s.Get(ctx, b.Version); err == nil {
		return fmt.Errorf("bundle version %s already published; bundles are append-only", b.Version)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.bundleKey(b.Version)),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"bundle-digest": b.Digest,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload bundle: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key("latest")),
		Body:        strings.NewReader(b.Version),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("failed to update latest pointer: %w", err)
	}
	return nil
}

// Get retrieves a specific bundle version.
func (s *S3Store) Get(ctx context.Context, version string) (*Bundle, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.bundleKey(version)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("version %s: %w", version, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch bundle: %w", err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle body: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle %s: %w", version, err)
	}
	return &b, nil
}

// Latest retrieves the most recently published bundle.
func (s *S3Store) Latest(ctx context.Context) (*Bundle, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key("latest")),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch latest pointer: %w", err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest pointer: %w", err)
	}
	return s.Get(ctx, strings.TrimSpace(string(raw)))
}

// Versions lists all published versions, oldest first.
func (s *S3Store) Versions(ctx context.Context) ([]string, error) {
	prefix := s.key("bundle-")
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	type stamped struct {
		version string
		modTime int64
	}
	var found []stamped
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list bundles: %w", err)
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			version := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
			var mod int64
			if obj.LastModified != nil {
				mod = obj.LastModified.UnixNano()
			}
			found = append(found, stamped{version: version, modTime: mod})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].modTime != found[j].modTime {
			return found[i].modTime < found[j].modTime
		}
		return found[i].version < found[j].version
	})

	versions := make([]string, len(found))
	for i, f := range found {
		versions[i] = f.version
	}
	return versions, nil
}
