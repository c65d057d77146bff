package booking

import (
	"context"
	"strings"
)

type contextKey string

const idempotencyCtxKey contextKey = "bookingIdempotencyKey"

const MaxIdempotencyKeyLength = 128

// NewContextWithIdempotencyKey attaches the client supplied key. Blank keys are ignored,
// so a create without a key always makes a new booking.
func NewContextWithIdempotencyKey(ctx context.Context, key string) context.Context {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx
	}

	return context.WithValue(ctx, idempotencyCtxKey, key)
}

func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyCtxKey).(string)

	return key, ok && key != ""
}
