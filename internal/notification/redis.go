package notification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/custody_vault/internal/events"
)

const defaultStreamMaxLen = 100_000

// RedisStreamNotifier appends events to a Redis stream so other services can
// follow the vault with XREAD / consumer groups.
type RedisStreamNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamNotifier builds a notifier writing to stream. The stream is
// trimmed approximately to the most recent entries.
func NewRedisStreamNotifier(client *redis.Client, stream string) *RedisStreamNotifier {
	return &RedisStreamNotifier{client: client, stream: stream, maxLen: defaultStreamMaxLen}
}

// Notify XADDs the event as flat string fields.
func (n *RedisStreamNotifier) Notify(ctx context.Context, e events.Event) error {
	if n == nil || n.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: n.maxLen,
		Approx: true,
		Values: StreamFields(e),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}
	return nil
}

// StreamFields flattens an event into the stream entry layout.
func StreamFields(e events.Event) map[string]any {
	fields := map[string]any{
		"seq":        strconv.FormatUint(e.Seq, 10),
		"id":         e.ID.String(),
		"kind":       string(e.Kind),
		"at":         e.At.Format(time.RFC3339Nano),
		"request_id": e.RequestID,
	}
	switch e.Kind {
	case events.KindDeposited, events.KindWithdrew:
		fields["account"] = e.Account.Hex()
		fields["asset"] = e.Asset.Hex()
		fields["amount"] = e.AmountString()
	case events.KindWhitelistUpdated:
		fields["asset"] = e.Asset.Hex()
		fields["accepted"] = strconv.FormatBool(e.Accepted)
	case events.KindPaused, events.KindUnpaused:
		fields["account"] = e.Account.Hex()
	case events.KindOwnershipTransferred:
		fields["previous_owner"] = e.PreviousOwner.Hex()
		fields["new_owner"] = e.NewOwner.Hex()
	}
	return fields
}
