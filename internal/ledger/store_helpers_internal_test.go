package ledger

import (
	"sort"
	"testing"
	"time"
)

func TestFormatTimeSortsChronologically(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	stamps := []time.Time{
		base,
		base.Add(500 * time.Millisecond),
		base.Add(time.Microsecond),
		base.Add(time.Second),
		base.Add(120 * time.Nanosecond),
	}

	formatted := make([]string, len(stamps))
	for i, ts := range stamps {
		formatted[i] = formatTime(ts)
		if len(formatted[i]) != len(formatted[0]) {
			t.Fatalf("stamp %q has a different width than %q", formatted[i], formatted[0])
		}
	}

	sorted := append([]string(nil), formatted...)
	sort.Strings(sorted)
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	for i, ts := range stamps {
		if sorted[i] != formatTime(ts) {
			t.Fatalf("text order %v does not match time order at %d", sorted, i)
		}
		parsed, err := parseTimeString(sorted[i])
		if err != nil {
			t.Fatalf("parseTimeString(%q): %v", sorted[i], err)
		}
		if !parsed.Equal(ts) {
			t.Fatalf("round trip of %q = %v, want %v", sorted[i], parsed, ts)
		}
	}
}

func TestFormatTimeNormalizesToUTC(t *testing.T) {
	zone := time.FixedZone("plus2", 2*60*60)
	got := formatTime(time.Date(2026, 3, 1, 14, 0, 0, 0, zone))
	if got != "2026-03-01T12:00:00.000000000Z" {
		t.Fatalf("formatTime = %q", got)
	}
}
