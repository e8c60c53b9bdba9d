package tokensource

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/foldnet/gameserver/internal/domain"
)

// credentialsProvider is the subset of aws.CredentialsProvider this
// package depends on, narrowed for testability.
type credentialsProvider interface {
	Retrieve(ctx context.Context) (aws.Credentials, error)
}

// InstanceMetadata authorizes via ambient instance credentials, for
// deployments that run with an attached instance role instead of a
// service-account key file. It wraps any aws.CredentialsProvider, so
// the caller can supply ec2rolecreds, the default chain from
// config.LoadDefaultConfig, or a container-credentials provider
// interchangeably.
type InstanceMetadata struct {
	provider credentialsProvider
}

// NewInstanceMetadata wraps provider as an Authority.
func NewInstanceMetadata(provider credentialsProvider) *InstanceMetadata {
	return &InstanceMetadata{provider: provider}
}

// Fetch retrieves ambient credentials and reports the access key as the
// bearer token, with the provider's reported expiry carried through
// unchanged so Source applies the same refresh-ahead policy to it as to
// a signed JWT.
func (m *InstanceMetadata) Fetch(ctx context.Context) (domain.Credential, error) {
	creds, err := m.provider.Retrieve(ctx)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: instance metadata: %v", domain.ErrAuth, err)
	}
	if !creds.HasKeys() {
		return domain.Credential{}, fmt.Errorf("%w: instance metadata returned no credentials", domain.ErrAuth)
	}

	expiresAt := int64(0)
	if creds.CanExpire {
		expiresAt = creds.Expires.Unix()
	}

	return domain.Credential{Token: creds.AccessKeyID, ExpiresAt: expiresAt}, nil
}
