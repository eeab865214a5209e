package game

import (
	"fmt"
	"testing"
	"time"
)

func TestBucketFor(t *testing.T) {
	cases := []struct {
		m    float64
		want HistoryBucket
	}{
		{1.0, BucketBlue},
		{1.99, BucketBlue},
		{2.0, BucketPurple},
		{9.99, BucketPurple},
		{10.0, BucketPink},
		{35, BucketPink},
	}
	for _, tc := range cases {
		if got := BucketFor(tc.m); got != tc.want {
			t.Errorf("BucketFor(%v) = %s, want %s", tc.m, got, tc.want)
		}
	}
}

func TestHistoryBuffer(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("NewestFirstAndBounded", func(t *testing.T) {
		b := NewHistoryBuffer(3)
		for i := 1; i <= 5; i++ {
			b.Record(NewHistoryEntry(fmt.Sprintf("r%d", i), float64(i), base.Add(time.Duration(i)*time.Second)))
			if b.Len() > 3 {
				t.Fatalf("buffer exceeded size: %d", b.Len())
			}
		}
		snap := b.Snapshot()
		want := []string{"r5", "r4", "r3"}
		for i, id := range want {
			if snap[i].RoundID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, snap[i].RoundID)
			}
		}
		for i := 1; i < len(snap); i++ {
			if snap[i].FinishedAt.After(snap[i-1].FinishedAt) {
				t.Errorf("entries not ordered newest first at %d", i)
			}
		}
		if snap[0].Bucket != BucketPurple {
			t.Errorf("expected purple bucket for 5x, got %s", snap[0].Bucket)
		}
	})

	t.Run("SnapshotIsCopy", func(t *testing.T) {
		b := NewHistoryBuffer(2)
		b.Record(NewHistoryEntry("a", 1.5, base))
		snap := b.Snapshot()
		snap[0].RoundID = "mutated"
		if b.Snapshot()[0].RoundID != "a" {
			t.Error("snapshot must not alias the buffer")
		}
	})

	t.Run("ResizeTruncatesOldest", func(t *testing.T) {
		b := NewHistoryBuffer(4)
		for i := 1; i <= 4; i++ {
			b.Record(NewHistoryEntry(fmt.Sprintf("r%d", i), 2, base))
		}
		b.Resize(2)
		snap := b.Snapshot()
		if len(snap) != 2 || snap[0].RoundID != "r4" || snap[1].RoundID != "r3" {
			t.Errorf("unexpected entries after resize: %+v", snap)
		}
		if b.Size() != 2 {
			t.Errorf("expected size 2, got %d", b.Size())
		}
	})

	t.Run("InvalidSizeUsesDefault", func(t *testing.T) {
		if NewHistoryBuffer(0).Size() <= 0 {
			t.Error("expected positive default size")
		}
	})
}
