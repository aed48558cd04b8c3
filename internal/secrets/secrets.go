// Package secrets resolves the delivery API credential from AWS Secrets
// Manager and verifies AWS credentials before a run starts.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// SecretsAPI is the subset of the Secrets Manager API used by the resolver.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// STSAPI is the subset of the STS API used for the credential preflight.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity is the AWS caller identity confirmed by Preflight.
type Identity struct {
	Account string
	ARN     string
}

// Resolver fetches the bearer credential and answers the preflight check.
// AWS clients are created lazily on first use.
type Resolver struct {
	region string

	mu            sync.Mutex
	secretsClient SecretsAPI
	stsClient     STSAPI
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSecretsClient sets a custom Secrets Manager client (useful for testing).
func WithSecretsClient(c SecretsAPI) ResolverOption {
	return func(r *Resolver) { r.secretsClient = c }
}

// WithSTSClient sets a custom STS client (useful for testing).
func WithSTSClient(c STSAPI) ResolverOption {
	return func(r *Resolver) { r.stsClient = c }
}

// NewResolver creates a Resolver reading secrets from the given region.
func NewResolver(region string, opts ...ResolverOption) *Resolver {
	r := &Resolver{region: region}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Preflight verifies AWS credentials are usable. Runs call it before any
// flow or secret access so credential problems surface as their own error
// class instead of as endpoint failures.
func (r *Resolver) Preflight(ctx context.Context) (Identity, error) {
	client, err := r.sts(ctx)
	if err != nil {
		return Identity{}, err
	}
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("GetCallerIdentity failed: %w", err)
	}
	return Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
	}, nil
}

// BearerToken fetches the named secret and extracts the API token. JSON
// secrets use the configured key, falling back to the first non-empty value
// in key order; plain-string secrets are returned as-is.
func (r *Resolver) BearerToken(ctx context.Context, name, key string) (string, error) {
	client, err := r.secrets(ctx)
	if err != nil {
		return "", err
	}
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("GetSecretValue failed: %w", err)
	}

	raw := aws.ToString(out.SecretString)
	if raw == "" {
		return "", fmt.Errorf("secret %s has no string value", name)
	}

	var kv map[string]string
	if err := json.Unmarshal([]byte(raw), &kv); err != nil {
		// Plain-string secret.
		return raw, nil
	}
	if v := kv[key]; v != "" {
		return v, nil
	}

	// JSON object key order is not stable; sort for a deterministic pick.
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if kv[k] != "" {
			return kv[k], nil
		}
	}
	return "", fmt.Errorf("secret %s contains no usable token", name)
}

func (r *Resolver) secrets(ctx context.Context) (SecretsAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.secretsClient != nil {
		return r.secretsClient, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	r.secretsClient = secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if r.region != "" {
			o.Region = r.region
		}
	})
	return r.secretsClient, nil
}

func (r *Resolver) sts(ctx context.Context) (STSAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stsClient != nil {
		return r.stsClient, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	r.stsClient = sts.NewFromConfig(cfg)
	return r.stsClient, nil
}
