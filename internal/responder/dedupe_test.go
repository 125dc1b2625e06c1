package responder

import (
	"fmt"
	"testing"
)

func TestDedupeRecord(t *testing.T) {
	t.Parallel()
	c := NewDedupeCache(0, 0)

	if c.Record("A") {
		t.Fatal("first Record must report not seen")
	}
	if !c.Record("A") {
		t.Fatal("second Record must report seen")
	}
	if c.Record("") {
		t.Fatal("empty id is never deduped")
	}
	if c.Record("") {
		t.Fatal("empty id must not be recorded")
	}
}

func TestDedupeCompaction(t *testing.T) {
	t.Parallel()
	c := NewDedupeCache(100, 80)

	for i := 0; i < 101; i++ {
		c.Record(fmt.Sprintf("id-%d", i))
	}
	if got := c.Len(); got != 80 {
		t.Fatalf("Len after compaction = %d, want 80", got)
	}
	// Oldest entries were dropped: they read as fresh again.
	if c.Record("id-0") {
		t.Fatal("evicted id should read as not seen")
	}
	// Newest entries survived.
	if !c.Record("id-100") {
		t.Fatal("recent id should still be known")
	}
}
