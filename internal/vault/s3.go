package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"omnia/internal/config"
	"omnia/internal/snapshot"
)

// S3Vault stores snapshots as objects in a bucket:
//
//	<prefix>/<hostID>/<name>
//	<prefix>/<hostID>/<name>.version
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

var _ snapshot.Vault = (*S3Vault)(nil)

// NewS3Vault creates an S3 vault. Credentials come from the config when both
// keys are set and from the default AWS chain otherwise. A custom endpoint
// switches to path-style addressing for S3-compatible servers.
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Vault{
		name:     cfg.Name,
		bucket:   cfg.S3Bucket,
		prefix:   strings.Trim(cfg.S3Prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (v *S3Vault) objectKey(hostID, name string) string {
	return path.Join(v.prefix, hostID, name)
}

// Put uploads a named item, then its version marker.
func (v *S3Vault) Put(ctx context.Context, hostID, name string, r io.Reader, size int64, version int64) error {
	cr := &countingReader{r: r}
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey(hostID, name)),
		Body:   cr,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	if cr.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, cr.n)
	}

	_, err = v.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey(hostID, name) + ".version"),
		Body:   strings.NewReader(strconv.FormatInt(version, 10)),
	})
	if err != nil {
		return fmt.Errorf("writing version of %s: %w", name, err)
	}
	return nil
}

// Get streams a named item to w.
func (v *S3Vault) Get(ctx context.Context, hostID, name string, w io.Writer) error {
	body, err := v.open(ctx, v.objectKey(hostID, name))
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return fmt.Errorf("%s for host %s: %w", name, hostID, snapshot.ErrNotFound)
		}
		return err
	}
	defer body.Close()

	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("downloading %s: %w", name, err)
	}
	return nil
}

// Version returns the stored version, 0 when absent.
func (v *S3Vault) Version(ctx context.Context, hostID, name string) (int64, error) {
	body, err := v.open(ctx, v.objectKey(hostID, name)+".version")
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return 0, fmt.Errorf("reading version of %s: %w", name, err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%s: %w", key, snapshot.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	return out.Body, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
