// Package context carries correlation values for logs and spans through a
// scheduler run.
package context

import (
	"context"
	"strings"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	jobKey
	entityIDKey
	actorKey
)

// ActorScheduler identifies writes made by the reconciliation loop.
const ActorScheduler = "scheduler"

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, strings.TrimSpace(runID))
}

func RunIDFromContext(ctx context.Context) string {
	return stringValue(ctx, runIDKey)
}

func WithJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, jobKey, strings.TrimSpace(job))
}

func JobFromContext(ctx context.Context) string {
	return stringValue(ctx, jobKey)
}

func WithEntityID(ctx context.Context, entityID string) context.Context {
	return context.WithValue(ctx, entityIDKey, strings.TrimSpace(entityID))
}

func EntityIDFromContext(ctx context.Context) string {
	return stringValue(ctx, entityIDKey)
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, strings.TrimSpace(actor))
}

// ActorFromContext returns the actor recorded on audit entries, or
// "system" when none was set.
func ActorFromContext(ctx context.Context) string {
	if actor := stringValue(ctx, actorKey); actor != "" {
		return actor
	}
	return "system"
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
