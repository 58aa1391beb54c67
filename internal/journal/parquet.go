package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Archiver moves completed days out of SQLite into parquet files under
// <dataDir>/journal/<YYYY-MM-DD>.parquet, keeping the live database small.
type Archiver struct {
	store   *SQLite
	dataDir string
}

// NewArchiver creates an archiver writing under dataDir.
func NewArchiver(store *SQLite, dataDir string) *Archiver {
	return &Archiver{store: store, dataDir: dataDir}
}

// ArchiveDay writes the given day's entries to parquet and prunes them from
// SQLite. A day with no entries produces no file. Archiving the same day
// twice overwrites the file with whatever is still in the database.
func (a *Archiver) ArchiveDay(ctx context.Context, day time.Time) error {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	entries, err := a.store.Between(ctx, from, to)
	if err != nil {
		return fmt.Errorf("reading day %s: %w", from.Format("2006-01-02"), err)
	}
	if len(entries) == 0 {
		return nil
	}

	dir := filepath.Join(a.dataDir, "journal")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}
	path := filepath.Join(dir, from.Format("2006-01-02")+".parquet")
	if err := parquet.WriteFile(path, entries); err != nil {
		return fmt.Errorf("writing archive %s: %w", path, err)
	}

	if _, err := a.store.DeleteBetween(ctx, from, to); err != nil {
		return err
	}
	return nil
}

// ReadArchive loads one day's archived entries.
func (a *Archiver) ReadArchive(day time.Time) ([]Entry, error) {
	path := filepath.Join(a.dataDir, "journal", day.UTC().Format("2006-01-02")+".parquet")
	entries, err := parquet.ReadFile[Entry](path)
	if err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", path, err)
	}
	return entries, nil
}

// Run archives every completed day once per sweep until ctx is cancelled.
// Sweeps run hourly; the common case archives exactly one day shortly after
// midnight UTC.
func (a *Archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			yesterday := time.Now().UTC().AddDate(0, 0, -1)
			if err := a.ArchiveDay(ctx, yesterday); err != nil && ctx.Err() == nil {
				a.store.log.Warn("journal archive sweep failed", "error", err)
			}
		}
	}
}
