package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Document is a fetched outline source, not yet split into lines.
type Document struct {
	Name     string // base name, used to pick an Extractor
	Location string
	Data     []byte
}

// RetryableError marks a fetch failure worth retrying (network, throttling).
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// ObjectGetter is the part of the S3 client the fetcher needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures access to s3:// locations. Credentials come from the
// default AWS chain.
type S3Config struct {
	Region    string
	Endpoint  string // optional; set for MinIO and friends
	PathStyle bool
}

// Fetcher reads outline documents from local paths (optionally file://) and
// s3://bucket/key locations.
type Fetcher struct {
	maxBytes int64
	s3cfg    S3Config

	mu       sync.Mutex
	s3client ObjectGetter
}

func NewFetcher(maxBytes int64, s3cfg S3Config) *Fetcher {
	return &Fetcher{maxBytes: maxBytes, s3cfg: s3cfg}
}

// WithS3Client replaces the lazily built S3 client.
func (f *Fetcher) WithS3Client(c ObjectGetter) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s3client = c
	return f
}

// Fetch loads the document at location.
func (f *Fetcher) Fetch(ctx context.Context, location string) (Document, error) {
	if strings.TrimSpace(location) == "" {
		return Document{}, fmt.Errorf("empty source location")
	}
	if strings.HasPrefix(location, "s3://") {
		return f.fetchS3(ctx, location)
	}
	return f.fetchFile(strings.TrimPrefix(location, "file://"), location)
}

func (f *Fetcher) fetchFile(p, location string) (Document, error) {
	file, err := os.Open(p)
	if err != nil {
		return Document{}, fmt.Errorf("open source: %w", err)
	}
	defer file.Close()

	data, err := f.readLimited(file)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", p, err)
	}
	return Document{Name: filepath.Base(p), Location: location, Data: data}, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, location string) (Document, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return Document{}, err
	}
	client, err := f.client(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("s3 client: %w", err)
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		var nsb *types.NoSuchBucket
		if errors.As(err, &nsk) || errors.As(err, &nsb) || ctx.Err() != nil {
			return Document{}, fmt.Errorf("get %s: %w", location, err)
		}
		return Document{}, &RetryableError{Err: fmt.Errorf("get %s: %w", location, err)}
	}
	defer out.Body.Close()

	data, err := f.readLimited(out.Body)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", location, err)
	}
	return Document{Name: path.Base(key), Location: location, Data: data}, nil
}

func (f *Fetcher) client(ctx context.Context) (ObjectGetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.s3client != nil {
		return f.s3client, nil
	}

	region := f.s3cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	f.s3client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if f.s3cfg.PathStyle {
			o.UsePathStyle = true
		}
		if f.s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(f.s3cfg.Endpoint)
		}
	})
	return f.s3client, nil
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	if f.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("source exceeds max size (%d bytes)", f.maxBytes)
	}
	return data, nil
}

func parseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 location %q: %w", location, err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 location %q: want s3://bucket/key", location)
	}
	return bucket, key, nil
}
