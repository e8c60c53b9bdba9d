package modprovider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/foldnet/gameserver/internal/domain"
)

// s3API is the subset of *s3.Client this package depends on, so tests
// can substitute a fake.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 resolves modules from an S3 bucket at key "v<semver>.wasm", with
// the default version's id stored as the plain-text contents of a
// "default" object. This gives deployments a way to publish and roll
// back module versions without touching host filesystems, exercising
// the aws-sdk-go-v2 stack that ships with this repo's dependency set.
type S3 struct {
	client s3API
	bucket string
	prefix string
}

// NewS3 creates an S3 provider against bucket, reading through client
// (which carries the credentials and region). prefix is prepended to object keys (may be empty).
func NewS3(client *s3.Client, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.TrimSuffix(prefix, "/")}
}

func (p *S3) Default(ctx context.Context) (domain.ModuleId, error) {
	data, err := p.get(ctx, p.key("default"))
	if err != nil {
		return "", err
	}
	return domain.ModuleId(strings.TrimSpace(string(data))), nil
}

func (p *S3) Load(ctx context.Context, id domain.ModuleId) ([]byte, error) {
	return p.get(ctx, p.key(fmt.Sprintf("v%s.wasm", id)))
}

func (p *S3) get(ctx context.Context, key string) ([]byte, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return nil, fmt.Errorf("%w: s3://%s/%s", domain.ErrModuleNotFound, p.bucket, key)
		}
		return nil, fmt.Errorf("modprovider: get s3://%s/%s: %w", p.bucket, key, err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, out.Body); err != nil {
		return nil, fmt.Errorf("modprovider: read s3 body: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *S3) key(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "/" + name
}

// Close is a no-op: the s3.Client this provider wraps owns no
// connection that needs releasing.
func (p *S3) Close() error { return nil }
