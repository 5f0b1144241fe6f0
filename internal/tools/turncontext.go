package tools

import "context"

// TurnContext carries the per-inbound-event binding (default channel/chatId)
// that the message, spawn, and cron tools need. The value travels down
// through ctx for each turn, keeping Tool instances immutable and safe to
// share across concurrent turns.
type TurnContext struct {
	Channel string
	ChatID  string
}

type turnContextKey struct{}

// WithTurnContext returns a context carrying tc for the current turn.
func WithTurnContext(ctx context.Context, tc TurnContext) context.Context {
	return context.WithValue(ctx, turnContextKey{}, tc)
}

// TurnContextFrom extracts the TurnContext bound to ctx, if any.
func TurnContextFrom(ctx context.Context) (TurnContext, bool) {
	tc, ok := ctx.Value(turnContextKey{}).(TurnContext)
	return tc, ok
}
