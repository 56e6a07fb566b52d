// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/valpere/FeedHarvester/internal/config"
	"github.com/valpere/FeedHarvester/internal/harvest"
	"github.com/valpere/FeedHarvester/internal/utils"
)

type fakeRunner struct {
	mu      sync.Mutex
	targets []harvest.Target
	records []harvest.Record
	err     error
}

func (f *fakeRunner) Harvest(ctx context.Context, target harvest.Target) *harvest.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target)
	return &harvest.Result{Kind: target.Kind, Records: f.records, Err: f.err}
}

type fakeSink struct {
	mu      sync.Mutex
	batches [][]harvest.Record
	kinds   []harvest.Kind
	ctxErrs []error
	err     error
}

func (f *fakeSink) Write(ctx context.Context, kind harvest.Kind, records []harvest.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.kinds = append(f.kinds, kind)
	f.batches = append(f.batches, records)
	return f.err
}

func quietLogger() utils.Logger {
	return utils.NewLoggerWithWriter(io.Discard, utils.ErrorLevel)
}

func videoSchedule(name string) config.ScheduleConfig {
	return config.ScheduleConfig{
		Name:  name,
		Cron:  "0 * * * *",
		Kind:  "videos",
		Query: "golang",
		Limit: 5,
	}
}

func TestRunNowWritesRecords(t *testing.T) {
	runner := &fakeRunner{records: []harvest.Record{
		&harvest.Video{Platform: harvest.PlatformYouTube, Title: "Go Concurrency"},
	}}
	sink := &fakeSink{}
	s := New(runner, sink, WithLogger(quietLogger()), WithJobTimeout(time.Minute))

	if err := s.Add(videoSchedule("hourly")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.RunNow(context.Background(), "hourly"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}

	want := harvest.Target{Kind: harvest.KindVideo, Query: "golang", Limit: 5}
	if diff := cmp.Diff([]harvest.Target{want}, runner.targets); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
	if len(sink.batches) != 1 || len(sink.batches[0]) != 1 {
		t.Fatalf("expected one batch of one record, got %v", sink.batches)
	}
	if sink.kinds[0] != harvest.KindVideo {
		t.Errorf("expected kind video, got %s", sink.kinds[0])
	}
}

func TestRunNowKeepsPartialRecordsOnError(t *testing.T) {
	jobErr := errors.New("navigate: timeout")
	runner := &fakeRunner{
		records: []harvest.Record{&harvest.Video{Title: "Partial"}},
		err:     jobErr,
	}
	sink := &fakeSink{}
	s := New(runner, sink, WithLogger(quietLogger()))
	if err := s.Add(videoSchedule("partial")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	err := s.RunNow(context.Background(), "partial")
	if !errors.Is(err, jobErr) {
		t.Fatalf("expected job error, got %v", err)
	}
	if len(sink.batches) != 1 {
		t.Errorf("expected partial records to be written, got %d batches", len(sink.batches))
	}
}

func TestRunNowSkipsEmptyResults(t *testing.T) {
	sink := &fakeSink{}
	s := New(&fakeRunner{}, sink, WithLogger(quietLogger()))
	if err := s.Add(videoSchedule("empty")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.RunNow(context.Background(), "empty"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if len(sink.batches) != 0 {
		t.Errorf("expected no write, got %d batches", len(sink.batches))
	}
}

func TestRunNowReportsSinkError(t *testing.T) {
	runner := &fakeRunner{records: []harvest.Record{&harvest.Video{Title: "Go Tour"}}}
	sink := &fakeSink{err: errors.New("disk full")}
	s := New(runner, sink, WithLogger(quietLogger()))
	if err := s.Add(videoSchedule("broken")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.RunNow(context.Background(), "broken"); err == nil {
		t.Fatal("expected sink error")
	}
}

func TestRunNowUnknownSchedule(t *testing.T) {
	s := New(&fakeRunner{}, &fakeSink{}, WithLogger(quietLogger()))
	if err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown schedule")
	}
}

func TestAddRejectsInvalidSchedules(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.ScheduleConfig)
	}{
		{"bad cron", func(sc *config.ScheduleConfig) { sc.Cron = "every minute" }},
		{"bad kind", func(sc *config.ScheduleConfig) { sc.Kind = "podcasts" }},
		{"bad output", func(sc *config.ScheduleConfig) { sc.Output = &config.OutputConfig{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeRunner{}, &fakeSink{}, WithLogger(quietLogger()))
			sc := videoSchedule("job")
			tt.modify(&sc)
			if err := s.Add(sc); err == nil {
				t.Error("expected error")
			}
			if len(s.Entries()) != 0 {
				t.Errorf("expected no entries, got %v", s.Entries())
			}
		})
	}
}

func TestAddReplacesAndRemove(t *testing.T) {
	s := New(&fakeRunner{}, &fakeSink{}, WithLogger(quietLogger()))
	if err := s.Add(videoSchedule("a")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	replaced := videoSchedule("a")
	replaced.Cron = "@daily"
	if err := s.Add(replaced); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(videoSchedule("b")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "a" || entries[0].Cron != "@daily" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}

	if !s.Remove("a") {
		t.Error("expected Remove to succeed")
	}
	if s.Remove("a") {
		t.Error("expected second Remove to report missing")
	}
	if len(s.Entries()) != 1 {
		t.Errorf("expected 1 entry, got %d", len(s.Entries()))
	}
}

func TestLoadReplacesAll(t *testing.T) {
	s := New(&fakeRunner{}, &fakeSink{}, WithLogger(quietLogger()))
	if err := s.Load([]config.ScheduleConfig{videoSchedule("a"), videoSchedule("b")}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.Load([]config.ScheduleConfig{videoSchedule("c")}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	entries := s.Entries()
	if len(entries) != 1 || entries[0].Name != "c" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestStartComputesNextRun(t *testing.T) {
	s := New(&fakeRunner{}, &fakeSink{}, WithLogger(quietLogger()), WithLocation(time.UTC))
	if err := s.Add(videoSchedule("hourly")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	s.Start()
	defer func() { <-s.Stop().Done() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if next := s.Entries()[0].Next; !next.IsZero() {
			if next.Minute() != 0 || next.Second() != 0 {
				t.Errorf("expected top of the hour, got %v", next)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("next run was never scheduled")
}

func TestScheduleOutputOverride(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{records: []harvest.Record{
		&harvest.Video{Platform: harvest.PlatformYouTube, Title: "Effective Go"},
	}}
	global := &fakeSink{}
	s := New(runner, global, WithLogger(quietLogger()))

	sc := videoSchedule("to-file")
	sc.Output = &config.OutputConfig{Format: "json", File: filepath.Join(dir, "{kind}.json")}
	if err := s.Add(sc); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.RunNow(context.Background(), "to-file"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}

	if len(global.batches) != 0 {
		t.Errorf("global sink should not be used, got %d batches", len(global.batches))
	}
	data, err := os.ReadFile(filepath.Join(dir, "video.json"))
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if len(data) == 0 {
		t.Error("output file is empty")
	}
}

// blockingRunner harvests until its context ends, then returns what it
// collected so far
type blockingRunner struct {
	started chan struct{}
}

func (b *blockingRunner) Harvest(ctx context.Context, target harvest.Target) *harvest.Result {
	close(b.started)
	<-ctx.Done()
	return &harvest.Result{
		Kind:    target.Kind,
		Records: []harvest.Record{&harvest.Video{Title: "Go Concurrency"}},
		Err:     ctx.Err(),
	}
}

func TestStopCancelsRunningHarvests(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{})}
	sink := &fakeSink{}
	s := New(runner, sink, WithLogger(quietLogger()), WithJobTimeout(0))
	if err := s.Add(videoSchedule("hourly")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	s.Start()

	s.mu.Lock()
	entry := s.cron.Entry(s.jobs["hourly"].id)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		entry.Job.Run()
		close(done)
	}()
	<-runner.started

	stopped := s.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected Stop to cancel the running harvest")
	}
	<-stopped.Done()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.batches) != 1 || len(sink.batches[0]) != 1 {
		t.Fatalf("Expected partial records stored, got %v", sink.batches)
	}
	if sink.ctxErrs[0] != nil {
		t.Errorf("Expected records written with a live context, got %v", sink.ctxErrs[0])
	}
}

func TestStartAfterStopRunsAgain(t *testing.T) {
	s := New(&fakeRunner{}, &fakeSink{}, WithLogger(quietLogger()))
	s.Start()
	<-s.Stop().Done()
	if s.baseContext().Err() == nil {
		t.Fatal("Expected runs cancelled after Stop")
	}

	s.Start()
	defer s.Stop()
	if err := s.baseContext().Err(); err != nil {
		t.Errorf("Expected a fresh run context after restart, got %v", err)
	}
}
