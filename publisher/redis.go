package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"aviatorServer/config"
	"aviatorServer/game"

	"github.com/redis/go-redis/v9"
)

// Envelope is the message shape on every realtime channel.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Redis publishes engine events as JSON envelopes over Redis pub/sub.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) publish(ctx context.Context, channel, kind string, data any) error {
	payload, err := json.Marshal(Envelope{Type: kind, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (r *Redis) PublishState(ctx context.Context, payload game.StatePayload) error {
	return r.publish(ctx, config.ChannelState, TypeState, payload)
}

func (r *Redis) PublishHistory(ctx context.Context, payload game.HistoryPayload) error {
	return r.publish(ctx, config.ChannelHistory, TypeHistory, payload)
}

func (r *Redis) PublishBetResult(ctx context.Context, result game.BetResult) error {
	return r.publish(ctx, config.ChannelBet, TypeBetResult, result)
}

func (r *Redis) PublishCashoutResult(ctx context.Context, result game.CashoutResult) error {
	return r.publish(ctx, config.ChannelCashout, TypeCashoutResult, result)
}
