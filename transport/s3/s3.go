// Package s3 provides a transport that stores each block record as an S3
// object. Writes are buffered and uploaded concurrently on Flush.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-stepio/transport"
)

// Config holds configuration for the S3 transport.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to all record keys (e.g., "runs/").
	KeyPrefix string

	// ForcePathStyle forces path-style addressing (required for MinIO).
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey select static credentials instead of
	// the default chain when both are set.
	AccessKeyID     string
	SecretAccessKey string

	// Concurrency bounds parallel uploads during Flush. Default 8.
	Concurrency int
}

// API is the subset of the S3 client the transport uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Transport buffers records and uploads them on Flush.
type Transport struct {
	client      API
	bucket      string
	keyPrefix   string
	concurrency int

	mu      sync.Mutex
	pending map[string][]byte
	closed  bool
}

// New creates a transport with an existing client.
func New(client API, config Config) *Transport {
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Transport{
		client:      client,
		bucket:      config.Bucket,
		keyPrefix:   config.KeyPrefix,
		concurrency: concurrency,
		pending:     make(map[string][]byte),
	}
}

// NewFromConfig creates a transport by building an S3 client from config.
func NewFromConfig(ctx context.Context, config Config) (*Transport, error) {
	if config.Bucket == "" {
		return nil, errors.New("s3 transport: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}
	if config.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), config), nil
}

// Name returns "s3:<bucket>/<prefix>".
func (t *Transport) Name() string {
	return "s3:" + t.bucket + "/" + t.keyPrefix
}

func (t *Transport) fullKey(key string) string {
	return t.keyPrefix + key
}

// Write buffers a private copy of data until the next Flush.
func (t *Transport) Write(ctx context.Context, key string, data []byte) (transport.Locator, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.Locator{}, transport.ErrClosed
	}
	t.pending[t.fullKey(key)] = bytes.Clone(data)
	return transport.Locator{
		Transport: t.Name(),
		Key:       t.fullKey(key),
		Length:    int64(len(data)),
	}, nil
}

// Read fetches the object named by loc.
func (t *Transport) Read(ctx context.Context, loc transport.Locator) ([]byte, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, transport.ErrClosed
	}
	t.mu.Unlock()

	resp, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", transport.ErrNotFound, loc.Key)
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}
	return data, nil
}

// Flush uploads every buffered record. Records that failed to upload stay
// buffered for the next Flush.
func (t *Transport) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.ErrClosed
	}
	return t.flushLocked(ctx)
}

func (t *Transport) flushLocked(ctx context.Context) error {
	if len(t.pending) == 0 {
		return nil
	}

	var (
		doneMu sync.Mutex
		done   []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for key, data := range t.pending {
		g.Go(func() error {
			_, err := t.client.PutObject(gctx, &s3.PutObjectInput{
				Bucket:        aws.String(t.bucket),
				Key:           aws.String(key),
				Body:          bytes.NewReader(data),
				ContentLength: aws.Int64(int64(len(data))),
			})
			if err != nil {
				return fmt.Errorf("s3 put object %s: %w", key, err)
			}
			doneMu.Lock()
			done = append(done, key)
			doneMu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	for _, key := range done {
		delete(t.pending, key)
	}
	return err
}

// Close uploads buffered records and closes the transport.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.ErrClosed
	}
	t.closed = true
	err := t.flushLocked(ctx)
	t.pending = nil
	return err
}

// isNotFoundError checks if an error is an S3 not found error.
func isNotFoundError(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}

var _ transport.Transport = (*Transport)(nil)
