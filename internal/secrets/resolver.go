// Package secrets resolves database credentials from AWS Secrets Manager.
//
// Secret values are never logged; only names, ARNs and operation outcomes are.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

// AWS error codes mapped onto package errors.
const (
	resourceNotFoundException = "ResourceNotFoundException"
	accessDeniedException     = "AccessDeniedException"
)

// ManagerAPI is the subset of the Secrets Manager client used by Resolver.
type ManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)

	ListSecrets(
		ctx context.Context,
		params *secretsmanager.ListSecretsInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.ListSecretsOutput, error)
}

var _ ManagerAPI = (*secretsmanager.Client)(nil)

// Resolver looks secrets up by exact name or by description prefix. It holds no
// state besides its collaborators and is safe for concurrent use. Every call is
// one or more network round-trips; nothing is cached or retried.
type Resolver struct {
	api    ManagerAPI
	logger *slog.Logger
}

// NewResolver returns a Resolver over api.
func NewResolver(api ManagerAPI, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{api: api, logger: logger}
}

// NewFromConfig loads the default AWS configuration for region and returns a
// Resolver backed by the Secrets Manager client. A non-empty endpoint overrides
// the service endpoint, as used with LocalStack.
func NewFromConfig(ctx context.Context, region, endpoint string, logger *slog.Logger) (*Resolver, error) {
	if strings.TrimSpace(region) == "" {
		return nil, errors.New("aws region cannot be empty")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		// One request per lookup; failures surface to the caller immediately.
		o.Retryer = aws.NopRetryer{}
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewResolver(client, logger), nil
}

// ResolveByName returns the value of the secret identified by name or ARN.
func (r *Resolver) ResolveByName(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("resolve secret: %w: empty name", ErrSecretNotFound)
	}
	r.logger.InfoContext(ctx, "retrieving secret", "secret_name", name)

	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		err = classify("GetSecretValue", err)
		r.logger.WarnContext(ctx, "failed to retrieve secret", "secret_name", name, "error", err)
		return "", fmt.Errorf("resolve secret %q: %w", name, err)
	}

	switch {
	case out.SecretString != nil:
		return *out.SecretString, nil
	case len(out.SecretBinary) > 0:
		return string(out.SecretBinary), nil
	default:
		return "", fmt.Errorf("resolve secret %q: %w", name, ErrSecretEmpty)
	}
}

// ResolveByDescriptionPrefix returns the value of the first listed secret whose
// description starts with prefix, compared case-insensitively. Listing scans
// every secret visible to the caller, page by page, until a match is found.
func (r *Resolver) ResolveByDescriptionPrefix(ctx context.Context, prefix string) (string, error) {
	if strings.TrimSpace(prefix) == "" {
		return "", fmt.Errorf("resolve secret by description: %w: empty prefix", ErrSecretNotFound)
	}
	r.logger.InfoContext(ctx, "searching secrets by description", "description_prefix", prefix)

	lower := strings.ToLower(prefix)
	pages := secretsmanager.NewListSecretsPaginator(r.api, &secretsmanager.ListSecretsInput{})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			err = classify("ListSecrets", err)
			r.logger.WarnContext(ctx, "failed to list secrets", "error", err)
			return "", fmt.Errorf("resolve secret by description %q: %w", prefix, err)
		}
		for _, entry := range page.SecretList {
			description := aws.ToString(entry.Description)
			if description == "" || !strings.HasPrefix(strings.ToLower(description), lower) {
				continue
			}
			id := aws.ToString(entry.ARN)
			if id == "" {
				id = aws.ToString(entry.Name)
			}
			r.logger.InfoContext(ctx, "secret matched description", "secret_arn", id)
			value, err := r.ResolveByName(ctx, id)
			if err != nil {
				return "", fmt.Errorf("resolve secret by description %q: %w", prefix, err)
			}
			return value, nil
		}
	}
	return "", fmt.Errorf("resolve secret by description %q: %w", prefix, ErrSecretNotFound)
}

// classify maps SDK failures onto package errors. Known API codes become their
// sentinel; anything else is treated as the store being unreachable.
func classify(operation string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case resourceNotFoundException:
			return fmt.Errorf("%s: %w", operation, ErrSecretNotFound)
		case accessDeniedException:
			return fmt.Errorf("%s: %w", operation, ErrAccessDenied)
		}
		return fmt.Errorf("%s: %s: %w: %s", operation, apiErr.ErrorCode(), ErrSecretStoreUnreachable, apiErr.ErrorMessage())
	}
	return fmt.Errorf("%s: %w: %w", operation, ErrSecretStoreUnreachable, err)
}
