package pagination

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("zero limit: got %d", got)
	}
	if got := NormalizeLimit(-5); got != DefaultLimit {
		t.Fatalf("negative limit: got %d", got)
	}
	if got := NormalizeLimit(MaxLimit + 50); got != MaxLimit {
		t.Fatalf("oversized limit: got %d", got)
	}
	if got := NormalizeLimit(10); got != 10 {
		t.Fatalf("in-range limit: got %d", got)
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("buffer limit: got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{
		CreatedAt: time.Date(2026, 3, 1, 8, 30, 0, 123456789, time.UTC),
		ID:        uuid.New(),
	}

	encoded := EncodeCursor(cursor)
	parsed, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if parsed == nil {
		t.Fatal("expected cursor")
	}
	if !parsed.CreatedAt.Equal(cursor.CreatedAt) || parsed.ID != cursor.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, cursor)
	}
}

func TestParseCursorAcceptsUnpadded(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()}
	encoded := strings.TrimRight(EncodeCursor(cursor), "=")

	parsed, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if parsed.ID != cursor.ID {
		t.Fatalf("unexpected id %s", parsed.ID)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if _, err := ParseCursor("not-base64!!"); err == nil {
		t.Fatal("expected error")
	}
	if cursor, err := ParseCursor("   "); err != nil || cursor != nil {
		t.Fatalf("blank cursor should be nil, got %v %v", cursor, err)
	}
}
