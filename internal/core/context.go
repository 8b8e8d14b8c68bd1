package core

import "context"

type contextKey string

const ctxKeyFetchID contextKey = "fetch_id"

// ContextWithFetchID tags ctx with the ID of the ingestion it runs for, so
// log lines from readers and clients can be correlated with the Snapshot
// they produce.
func ContextWithFetchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyFetchID, id)
}

// FetchIDFromContext extracts the fetch ID from context.
func FetchIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyFetchID).(string); ok {
		return v
	}
	return ""
}
