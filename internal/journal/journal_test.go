package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "journal.db"), testLogger())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Record(ctx, Entry{Kind: KindBuy, Symbol: "AAPL", OrderID: "ord-1", Qty: 100, Price: 10.00})
	s.Record(ctx, Entry{Kind: KindCreate, Symbol: "AAPL", OrderID: "ord-2", Qty: 100, Price: 9.85})
	s.Record(ctx, Entry{Kind: KindBuy, Symbol: "TSLA", OrderID: "ord-3", Qty: 10, Price: 200.00})

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(recent))
	}
	if recent[0].OrderID != "ord-3" {
		t.Errorf("newest entry = %q, want ord-3", recent[0].OrderID)
	}

	aapl, err := s.BySymbol(ctx, "AAPL", 10)
	if err != nil {
		t.Fatalf("BySymbol: %v", err)
	}
	if len(aapl) != 2 {
		t.Errorf("BySymbol(AAPL) returned %d entries, want 2", len(aapl))
	}

	if recent[0].Time.IsZero() {
		t.Error("stored entry has zero timestamp")
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Record(ctx, Entry{Kind: KindReap, Symbol: "AAPL"})
	}
	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Recent(2) returned %d entries", len(got))
	}
}

func TestArchiveDayRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	dataDir := t.TempDir()

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	s.Record(ctx, Entry{Time: day.Add(10 * time.Hour), Kind: KindCreate, Symbol: "AAPL", OrderID: "ord-1", Qty: 100, Price: 9.85})
	s.Record(ctx, Entry{Time: day.Add(11 * time.Hour), Kind: KindConfirm, Symbol: "AAPL", OrderID: "ord-1"})
	s.Record(ctx, Entry{Time: day.AddDate(0, 0, 1).Add(time.Hour), Kind: KindBuy, Symbol: "TSLA", OrderID: "ord-2"})

	a := NewArchiver(s, dataDir)
	if err := a.ArchiveDay(ctx, day); err != nil {
		t.Fatalf("ArchiveDay: %v", err)
	}

	archived, err := a.ReadArchive(day)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("archive holds %d entries, want 2", len(archived))
	}
	if archived[0].Kind != KindCreate || archived[0].Symbol != "AAPL" {
		t.Errorf("first archived entry = %+v", archived[0])
	}

	// Archived entries are pruned; the next day's entry survives.
	left, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(left) != 1 || left[0].OrderID != "ord-2" {
		t.Errorf("remaining entries = %+v, want only ord-2", left)
	}
}

func TestArchiveDayEmptyIsNoop(t *testing.T) {
	s := openTestStore(t)
	a := NewArchiver(s, t.TempDir())

	if err := a.ArchiveDay(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("ArchiveDay on empty day: %v", err)
	}
	if _, err := a.ReadArchive(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Error("ReadArchive succeeded for a day that produced no file")
	}
}

func TestMultiFansOut(t *testing.T) {
	var a, b recording
	m := Multi{&a, &b}
	m.Record(context.Background(), Entry{Kind: KindBuy, Symbol: "AAPL"})

	if len(a.got) != 1 || len(b.got) != 1 {
		t.Errorf("fanout delivered %d/%d entries, want 1/1", len(a.got), len(b.got))
	}
}

type recording struct{ got []Entry }

func (r *recording) Record(_ context.Context, e Entry) { r.got = append(r.got, e) }
