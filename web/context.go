package web

import (
	"context"

	"github.com/artpar/usageledger/domain/key"
)

type ctxKey string

const credentialKey ctxKey = "credential"

// withCredential adds the authenticated API key to the context.
func withCredential(ctx context.Context, k key.Key) context.Context {
	return context.WithValue(ctx, credentialKey, k)
}

// credentialFrom retrieves the authenticated API key from context.
func credentialFrom(ctx context.Context) (key.Key, bool) {
	k, ok := ctx.Value(credentialKey).(key.Key)
	return k, ok
}
