package game

import (
	"time"

	"aviatorServer/config"
)

type HistoryBucket string

const (
	BucketBlue   HistoryBucket = "blue"
	BucketPurple HistoryBucket = "purple"
	BucketPink   HistoryBucket = "pink"
)

// BucketFor classifies a final multiplier.
func BucketFor(multiplier float64) HistoryBucket {
	if multiplier < config.BucketPurpleFrom {
		return BucketBlue
	}
	if multiplier < config.BucketPinkFrom {
		return BucketPurple
	}
	return BucketPink
}

// HistoryEntry summarizes a finished round.
type HistoryEntry struct {
	RoundID    string        `json:"roundId"`
	Multiplier float64       `json:"multiplier"`
	Bucket     HistoryBucket `json:"bucket"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// NewHistoryEntry builds an entry with its bucket derived from multiplier.
func NewHistoryEntry(roundID string, multiplier float64, finishedAt time.Time) HistoryEntry {
	return HistoryEntry{
		RoundID:    roundID,
		Multiplier: multiplier,
		Bucket:     BucketFor(multiplier),
		FinishedAt: finishedAt,
	}
}

// HistoryBuffer keeps the most recent finished rounds, newest first.
// It is not safe for concurrent use; the state machine owns it.
type HistoryBuffer struct {
	entries []HistoryEntry
	size    int
}

func NewHistoryBuffer(size int) *HistoryBuffer {
	if size <= 0 {
		size = config.DefaultHistorySize
	}
	return &HistoryBuffer{entries: make([]HistoryEntry, 0, size), size: size}
}

// Record prepends entry and drops anything beyond the configured size.
func (b *HistoryBuffer) Record(entry HistoryEntry) {
	b.entries = append(b.entries, HistoryEntry{})
	copy(b.entries[1:], b.entries)
	b.entries[0] = entry
	if len(b.entries) > b.size {
		b.entries = b.entries[:b.size]
	}
}

// Resize changes the capacity, truncating the oldest entries if needed.
func (b *HistoryBuffer) Resize(size int) {
	if size <= 0 || size == b.size {
		return
	}
	b.size = size
	if len(b.entries) > size {
		b.entries = b.entries[:size]
	}
}

// Snapshot returns a copy of the entries, newest first.
func (b *HistoryBuffer) Snapshot() []HistoryEntry {
	out := make([]HistoryEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *HistoryBuffer) Len() int  { return len(b.entries) }
func (b *HistoryBuffer) Size() int { return b.size }
