package publisher

import (
	"context"

	"aviatorServer/game"

	"go.uber.org/zap"
)

// Log writes events to the logger. State frames go to debug to keep the
// info stream to phase transitions only.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) PublishState(_ context.Context, p game.StatePayload) error {
	fields := []zap.Field{
		zap.String("roundId", p.RoundID),
		zap.String("phase", string(p.Phase)),
		zap.Float64("multiplier", p.Multiplier),
		zap.Int64("closesInMs", p.BettingWindow.ClosesInMs),
	}
	if p.CrashMultiplier != nil {
		fields = append(fields, zap.Float64("crashMultiplier", *p.CrashMultiplier))
	}
	l.logger.Debug("📡 state", fields...)
	return nil
}

func (l *Log) PublishHistory(_ context.Context, p game.HistoryPayload) error {
	l.logger.Debug("📜 history", zap.Int("entries", len(p.Entries)))
	return nil
}

func (l *Log) PublishBetResult(_ context.Context, r game.BetResult) error {
	l.logger.Info("🎯 bet result",
		zap.String("roundId", r.RoundID),
		zap.String("userId", r.UserID),
		zap.String("status", string(r.Status)),
		zap.String("reason", r.Reason))
	return nil
}

func (l *Log) PublishCashoutResult(_ context.Context, r game.CashoutResult) error {
	l.logger.Info("💰 cashout result",
		zap.String("ticketId", r.TicketID),
		zap.String("kind", string(r.Kind)),
		zap.String("status", string(r.Status)),
		zap.Float64("multiplier", r.CashoutMultiplier))
	return nil
}
