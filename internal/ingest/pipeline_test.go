package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/kensaku/internal/backoff"
	"github.com/hyperjump/kensaku/internal/fetcher"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/store"
	"github.com/hyperjump/kensaku/internal/upstream"
)

// fakeSource simulates the upstream collection: fixed records served in
// skip/limit pages, with failures injectable per offset.
type fakeSource struct {
	mu       sync.Mutex
	records  []*models.Record
	failures map[int][]error // errors to return before succeeding, per offset
	offsets  []int           // offsets requested, in order
	delay    time.Duration
}

func newFakeSource(n int) *fakeSource {
	s := &fakeSource{failures: make(map[int][]error)}
	for i := 0; i < n; i++ {
		s.records = append(s.records, models.NewRecord(
			fmt.Sprintf("m-%04d", i),
			fmt.Sprintf("message body %d", i),
			fmt.Sprintf("user-%d", i%7),
		))
	}
	return s
}

func (s *fakeSource) failAt(offset int, errs ...error) {
	s.failures[offset] = errs
}

func (s *fakeSource) GetPage(ctx context.Context, offset, limit int) (*models.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delay > 0 {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			s.mu.Lock()
			return nil, &upstream.TransientError{Err: ctx.Err()}
		case <-time.After(s.delay):
		}
		s.mu.Lock()
	}
	s.offsets = append(s.offsets, offset)
	if pending := s.failures[offset]; len(pending) > 0 {
		err := pending[0]
		s.failures[offset] = pending[1:]
		return nil, err
	}
	if offset >= len(s.records) {
		return &models.Page{NextOffset: offset, HasMore: false, Total: len(s.records)}, nil
	}
	end := offset + limit
	if end > len(s.records) {
		end = len(s.records)
	}
	return &models.Page{
		Items:      s.records[offset:end],
		NextOffset: end,
		HasMore:    end < len(s.records),
		Total:      len(s.records),
	}, nil
}

func testPolicy() backoff.Policy {
	return backoff.Policy{
		RateLimitBase:    time.Millisecond,
		TransientBase:    time.Millisecond,
		Factor:           2,
		MaxDelay:         10 * time.Millisecond,
		TransientRetries: 2,
	}
}

func newTestPipeline(src *fakeSource, pageSize int, loadTimeout time.Duration) (*Pipeline, *fetcher.Fetcher) {
	f := fetcher.New(src, testPolicy(), pageSize, 0, 0)
	return NewPipeline(f, loadTimeout), f
}

func TestLoad_FullCollectionWithRateLimitRecovery(t *testing.T) {
	src := newFakeSource(249)
	src.failAt(100, &upstream.RateLimitedError{StatusCode: 429})

	pipeline, f := newTestPipeline(src, 100, 0)
	gen, err := pipeline.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if gen.Count() != 249 {
		t.Errorf("records: got %d, want 249", gen.Count())
	}
	if gen.SourceTotal != 249 {
		t.Errorf("source total: got %d, want 249", gen.SourceTotal)
	}

	seen := make(map[string]bool)
	for _, rec := range gen.Records {
		if seen[rec.ID] {
			t.Errorf("duplicate record %s", rec.ID)
		}
		seen[rec.ID] = true
	}
	if stats := f.Stats(); stats.MaxDelay <= 0 {
		t.Error("expected at least one recorded backoff delay > 0")
	}
}

func TestLoad_OffsetsStrictlyIncreasing(t *testing.T) {
	src := newFakeSource(249)
	src.failAt(100, &upstream.RateLimitedError{StatusCode: 429})

	pipeline, _ := newTestPipeline(src, 100, 0)
	if _, err := pipeline.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Retries repeat an offset; distinct offsets must be 0, 100, 200 in order.
	var distinct []int
	for _, off := range src.offsets {
		if len(distinct) == 0 || distinct[len(distinct)-1] != off {
			distinct = append(distinct, off)
		}
	}
	want := []int{0, 100, 200}
	if len(distinct) != len(want) {
		t.Fatalf("offsets: got %v, want %v", distinct, want)
	}
	for i := range want {
		if distinct[i] != want[i] {
			t.Errorf("offset %d: got %d, want %d", i, distinct[i], want[i])
		}
	}
}

func TestLoad_DedupeFirstSeenWins(t *testing.T) {
	src := newFakeSource(150)
	// The upstream repeats a record across a page boundary.
	dup := *src.records[99]
	dup.Text = "later duplicate copy"
	src.records = append(src.records[:100], append([]*models.Record{&dup}, src.records[100:]...)...)

	pipeline, _ := newTestPipeline(src, 100, 0)
	gen, err := pipeline.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if gen.Count() != 150 {
		t.Errorf("records: got %d, want 150 (duplicate counted once)", gen.Count())
	}
	for _, rec := range gen.Records {
		if rec.ID == "m-0099" && rec.Text == "later duplicate copy" {
			t.Error("dedupe kept the later occurrence; first seen must win")
		}
	}
}

func TestLoad_TerminalFailureAbortsLoad(t *testing.T) {
	src := newFakeSource(249)
	src.failAt(100, &upstream.FatalError{Err: errors.New("schema changed")})

	pipeline, _ := newTestPipeline(src, 100, 0)
	_, err := pipeline.Load(context.Background())
	var lf *LoadFailure
	if !errors.As(err, &lf) {
		t.Fatalf("got %T, want *LoadFailure", err)
	}
	if lf.Offset != 100 {
		t.Errorf("offset: got %d, want 100", lf.Offset)
	}
	if lf.Kind != backoff.Fatal {
		t.Errorf("kind: got %s, want fatal", lf.Kind)
	}
}

func TestLoad_Timeout(t *testing.T) {
	src := newFakeSource(500)
	src.delay = 20 * time.Millisecond

	pipeline, _ := newTestPipeline(src, 100, 30*time.Millisecond)
	_, err := pipeline.Load(context.Background())
	var lf *LoadFailure
	if !errors.As(err, &lf) {
		t.Fatalf("got %T (%v), want *LoadFailure", err, err)
	}
	if !lf.Timeout {
		t.Errorf("expected timeout failure, got %v", lf)
	}
}

func TestLoader_InstallsOnSuccess(t *testing.T) {
	src := newFakeSource(50)
	pipeline, _ := newTestPipeline(src, 100, 0)
	st := store.New()
	loader := NewLoader(pipeline, st, nil)

	if err := loader.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	gen, err := st.Current()
	if err != nil {
		t.Fatal(err)
	}
	if gen.Count() != 50 {
		t.Errorf("records: got %d, want 50", gen.Count())
	}
}

func TestLoader_FailureKeepsPreviousGeneration(t *testing.T) {
	st := store.New()
	okSrc := newFakeSource(50)
	okPipeline, _ := newTestPipeline(okSrc, 100, 0)
	if err := NewLoader(okPipeline, st, nil).Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	installed, _ := st.Current()

	badSrc := newFakeSource(200)
	badSrc.failAt(100, &upstream.FatalError{Err: errors.New("boom")})
	badPipeline, _ := newTestPipeline(badSrc, 100, 0)
	if err := NewLoader(badPipeline, st, nil).Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh failure")
	}

	current, err := st.Current()
	if err != nil {
		t.Fatal(err)
	}
	if current != installed {
		t.Error("failed load replaced the serving generation")
	}
}

func TestLoader_TryRefreshAsyncSingleFlight(t *testing.T) {
	src := newFakeSource(300)
	src.delay = 10 * time.Millisecond
	pipeline, _ := newTestPipeline(src, 100, 0)
	st := store.New()
	loader := NewLoader(pipeline, st, nil)

	if !loader.TryRefreshAsync(context.Background()) {
		t.Fatal("first refresh should start")
	}
	if loader.TryRefreshAsync(context.Background()) {
		t.Error("second refresh should be rejected while the first runs")
	}

	deadline := time.Now().Add(5 * time.Second)
	for !st.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("refresh never completed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
