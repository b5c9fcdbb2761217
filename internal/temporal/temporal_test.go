package temporal

import (
	"testing"
	"time"
)

func TestParse_RoundTripEveryLayout(t *testing.T) {
	want := time.Date(2025, time.March, 7, 14, 5, 9, 0, time.UTC)

	for _, layout := range Layouts() {
		raw := want.Format(layout)
		got, ok := Parse(raw)
		if !ok {
			t.Errorf("layout %q: Parse(%q) failed", layout, raw)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("layout %q: got %v, want %v", layout, got, want)
		}
	}
}

func TestParse_FractionalSeconds(t *testing.T) {
	got, ok := Parse("2025-03-07T14:05:09.123456Z")
	if !ok {
		t.Fatal("expected fractional ISO timestamp to parse")
	}
	want := time.Date(2025, time.March, 7, 14, 5, 9, 123456000, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParse_ISOWholeSeconds(t *testing.T) {
	raw := "2025-03-07T14:05:09Z"
	if _, err := time.ParseInLocation(layouts[0], Normalize(raw), time.UTC); err != nil {
		t.Fatalf("ISO layout should accept whole seconds: %v", err)
	}
	got, ok := Parse(raw)
	if !ok {
		t.Fatal("expected whole-second ISO timestamp to parse")
	}
	if want := time.Date(2025, time.March, 7, 14, 5, 9, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParse_NoLeadingZeros(t *testing.T) {
	cases := map[string]time.Time{
		"3/7/2025 2:05:09 PM":    time.Date(2025, 3, 7, 14, 5, 9, 0, time.UTC),
		"3-7-2025 9:00:00 AM":    time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC),
		"12/31/2025 12:00:00 AM": time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		got, ok := Parse(raw)
		if !ok {
			t.Errorf("Parse(%q) failed", raw)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("Parse(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestParse_NonBreakingSpace(t *testing.T) {
	got, ok := Parse("03/07/2025\u00a002:05:09\u00a0\u00a0PM")
	if !ok {
		t.Fatal("expected NBSP-separated timestamp to parse")
	}
	if got.Hour() != 14 {
		t.Errorf("hour: got %d, want 14", got.Hour())
	}
}

func TestParse_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", " "} {
		if _, ok := Parse(raw); ok {
			t.Errorf("Parse(%q) should report unknown", raw)
		}
	}
}

func TestParse_Fallback(t *testing.T) {
	got, ok := Parse("2025-03-07 14:05:09")
	if !ok {
		t.Fatal("expected storage layout to parse through the fallback")
	}
	if got.Format(StorageLayout) != "2025-03-07 14:05:09" {
		t.Errorf("got %s", got.Format(StorageLayout))
	}
}

func TestParse_Garbage(t *testing.T) {
	if _, ok := Parse("not a timestamp"); ok {
		t.Error("expected garbage to be unknown")
	}
}

func TestParsePtr(t *testing.T) {
	if ParsePtr("") != nil {
		t.Error("ParsePtr of blank input should be nil")
	}
	p := ParsePtr("2025-03-07T14:05:09")
	if p == nil {
		t.Fatal("ParsePtr returned nil for a valid timestamp")
	}
	if Format(p) != "2025-03-07 14:05:09" {
		t.Errorf("Format: got %q", Format(p))
	}
	if Format(nil) != "" {
		t.Error("Format(nil) should be empty")
	}
}
