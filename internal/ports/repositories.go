package ports

import (
	"context"
)

// KVStore defines the durable key/value store the engine persists into.
// Implementations must be safe for concurrent use. Get returns
// domain.ErrKeyNotFound for missing keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// IDGenerator produces unique identifiers for engine entities.
type IDGenerator interface {
	GenerateSessionID() string
	GenerateMessageID() string
}

// CredentialSource resolves the bearer credential used to authorize streaming
// requests. An empty token with a nil error is treated as no credential.
type CredentialSource interface {
	BearerToken(ctx context.Context) (string, error)
}

// StaticCredential is a CredentialSource backed by a fixed token.
type StaticCredential string

func (c StaticCredential) BearerToken(_ context.Context) (string, error) {
	return string(c), nil
}
