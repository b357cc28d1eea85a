package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "apbn.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func TestMigrationsApplied(t *testing.T) {
	_, path := newTestRepo(t)

	version, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("SchemaVersion() = %d dirty=%v, want 1 clean", version, dirty)
	}

	// Re-running is a no-op.
	if err := RunMigrations(path); err != nil {
		t.Errorf("RunMigrations() second run error = %v", err)
	}
}

func TestRecordRunAndReadBack(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	started := time.Date(2016, 3, 1, 8, 0, 0, 0, time.UTC)
	run := Run{
		ID:          "run-1",
		StartedAt:   started,
		FinishedAt:  started.Add(1500 * time.Millisecond),
		Trigger:     "startup",
		FilesOK:     1,
		FilesFailed: 1,
		TotalRows:   10,
	}
	files := []FileOutcome{
		{Position: 0, Year: "2012", Source: "realisasi-apbn-2012.xlsx", Rows: 10, Duration: 40 * time.Millisecond},
		{Position: 1, Year: "2013", Source: "realisasi-apbn-2013.xlsx", Error: "open realisasi-apbn-2013.xlsx: no such file or directory"},
	}

	if err := repo.RecordRun(ctx, run, files); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	got, err := repo.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !got.StartedAt.Equal(run.StartedAt) || got.Duration() != 1500*time.Millisecond {
		t.Errorf("GetRun() times = %v / %v", got.StartedAt, got.Duration())
	}
	if got.FilesOK != 1 || got.FilesFailed != 1 || got.TotalRows != 10 || got.Trigger != "startup" {
		t.Errorf("GetRun() = %+v", got)
	}

	gotFiles, err := repo.RunFiles(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunFiles() error = %v", err)
	}
	if len(gotFiles) != 2 {
		t.Fatalf("RunFiles() returned %d files, want 2", len(gotFiles))
	}
	if gotFiles[0].Year != "2012" || gotFiles[0].Rows != 10 || gotFiles[0].Duration != 40*time.Millisecond {
		t.Errorf("RunFiles()[0] = %+v", gotFiles[0])
	}
	if gotFiles[1].Error == "" {
		t.Errorf("RunFiles()[1] lost its error")
	}
}

func TestRecordRunIsAtomic(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	dup := []FileOutcome{{Position: 0, Year: "2012"}, {Position: 0, Year: "2013"}}
	if err := repo.RecordRun(ctx, Run{ID: "bad", StartedAt: now, FinishedAt: now}, dup); err == nil {
		t.Fatal("expected duplicate position to fail")
	}
	if _, err := repo.GetRun(ctx, "bad"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() after failed insert error = %v, want ErrRunNotFound", err)
	}
}

func TestRecentRunsAndPrune(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		start := base.Add(time.Duration(i) * time.Minute)
		run := Run{ID: fmt.Sprintf("run-%d", i), StartedAt: start, FinishedAt: start.Add(time.Second), Trigger: "reload"}
		files := []FileOutcome{{Position: 0, Year: "2012", Source: "a.xlsx", Rows: i}}
		if err := repo.RecordRun(ctx, run, files); err != nil {
			t.Fatalf("RecordRun(%d) error = %v", i, err)
		}
	}

	runs, err := repo.RecentRuns(ctx, 3)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "run-4" || runs[2].ID != "run-2" {
		t.Errorf("RecentRuns() = %v", runIDs(runs))
	}

	pruned, err := repo.PruneRuns(ctx, 2)
	if err != nil {
		t.Fatalf("PruneRuns() error = %v", err)
	}
	if pruned != 3 {
		t.Errorf("PruneRuns() = %d, want 3", pruned)
	}
	files, err := repo.RunFiles(ctx, "run-0")
	if err != nil {
		t.Fatalf("RunFiles() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files of pruned run should cascade, got %d", len(files))
	}
}

func runIDs(runs []Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}
