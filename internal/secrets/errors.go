package secrets

import "errors"

var (
	// ErrSecretNotFound is returned when no secret matches the requested name
	// or description prefix.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretEmpty is returned when a secret exists but holds no value.
	ErrSecretEmpty = errors.New("secret value is empty")

	// ErrAccessDenied is returned when the caller's credentials may not read the secret.
	ErrAccessDenied = errors.New("access denied to secret")

	// ErrSecretStoreUnreachable wraps transport and service failures talking to
	// Secrets Manager.
	ErrSecretStoreUnreachable = errors.New("secret store unreachable")

	// ErrSecretFieldMissing is returned when a payload lacks the requested field
	// or is not a JSON object.
	ErrSecretFieldMissing = errors.New("secret field missing")
)
