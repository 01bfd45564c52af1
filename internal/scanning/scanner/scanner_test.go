package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/feescan/internal/core/domain"
	"github.com/vietddude/feescan/internal/core/progress"
	"github.com/vietddude/feescan/internal/infra/storage/memory"
)

// mockSource serves a fixed head and synthetic fee logs.
type mockSource struct {
	mu          sync.Mutex
	head        uint64
	headErr     error
	fetchErr    error
	decodeErr   error
	heightCalls int
	fetchCalls  int
	lastFrom    uint64
	lastTo      uint64
	blockCh     chan struct{} // when set, FetchRange blocks until closed
}

func (m *mockSource) SourceID() string { return "polygon" }

func (m *mockSource) CurrentHeight(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	m.heightCalls++
	m.mu.Unlock()
	if m.headErr != nil {
		return 0, m.headErr
	}
	return m.head, nil
}

func (m *mockSource) FetchRange(ctx context.Context, from, to uint64) ([]*domain.RawLog, error) {
	m.mu.Lock()
	m.fetchCalls++
	m.lastFrom, m.lastTo = from, to
	blockCh := m.blockCh
	m.mu.Unlock()

	if blockCh != nil {
		<-blockCh
	}
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}

	// One log per even height in range.
	var raws []*domain.RawLog
	for h := from; h <= to; h++ {
		if h%2 == 0 {
			raws = append(raws, &domain.RawLog{BlockHeight: h, TxHash: "0xtx", LogIndex: h})
		}
	}
	return raws, nil
}

func (m *mockSource) Decode(ctx context.Context, raws []*domain.RawLog) ([]*domain.FeeEvent, error) {
	if m.decodeErr != nil {
		return nil, m.decodeErr
	}
	events := make([]*domain.FeeEvent, 0, len(raws))
	for _, raw := range raws {
		events = append(events, &domain.FeeEvent{
			SourceID:    "polygon",
			Token:       "0xtoken",
			Integrator:  "0xintegrator",
			BlockHeight: raw.BlockHeight,
			TxHash:      raw.TxHash,
			LogIndex:    raw.LogIndex,
		})
	}
	return events, nil
}

type mockQueue struct {
	mu     sync.Mutex
	queued []*domain.FailedRange
}

func (m *mockQueue) Push(ctx context.Context, fr *domain.FailedRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, fr)
	return nil
}

func (m *mockQueue) Pop(ctx context.Context, sourceID string) (*domain.FailedRange, bool, error) {
	return nil, false, nil
}

func (m *mockQueue) Ranges(ctx context.Context, sourceID string) ([]*domain.FailedRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queued, nil
}

type fixture struct {
	scanner *Scanner
	source  *mockSource
	mgr     progress.Manager
	events  *memory.EventRepo
	queue   *mockQueue
}

func newFixture(src *mockSource) *fixture {
	store := memory.NewStorage()
	mgr := progress.NewManager(memory.NewProgressRepo(store))
	events := memory.NewEventRepo(store)
	queue := &mockQueue{}

	sc := New(Config{
		SourceID:            "polygon",
		FloorHeight:         100,
		BatchSize:           100,
		MaintenanceInterval: 5 * time.Millisecond,
		CatchUpPacing:       time.Millisecond,
		Source:              src,
		Progress:            mgr,
		Events:              events,
		FailedRanges:        queue,
	})

	return &fixture{scanner: sc, source: src, mgr: mgr, events: events, queue: queue}
}

func TestScanOnce_FirstBatch(t *testing.T) {
	f := newFixture(&mockSource{head: 500})
	ctx := context.Background()

	res, err := f.scanner.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("ScanOnce failed: %v", err)
	}

	// Watermark starts at floor−1 = 99, so the first range is [100,199].
	if f.source.lastFrom != 100 || f.source.lastTo != 199 {
		t.Errorf("expected range [100,199], got [%d,%d]", f.source.lastFrom, f.source.lastTo)
	}

	p, _ := f.mgr.Get(ctx, "polygon")
	if p.LastScannedHeight != 199 {
		t.Errorf("expected watermark 199, got %d", p.LastScannedHeight)
	}
	if p.KnownHeadHeight != 500 {
		t.Errorf("expected head 500, got %d", p.KnownHeadHeight)
	}
	if p.Status != domain.ScanStatusIdle {
		t.Errorf("expected idle, got %s", p.Status)
	}

	// 50 even heights in [100,199].
	if res.Scanned != 50 || res.NewEvents != 50 {
		t.Errorf("expected 50 scanned/new, got %+v", res)
	}
}

func TestScanOnce_BatchClampedToHead(t *testing.T) {
	f := newFixture(&mockSource{head: 150})

	if _, err := f.scanner.ScanOnce(context.Background()); err != nil {
		t.Fatalf("ScanOnce failed: %v", err)
	}
	if f.source.lastTo != 150 {
		t.Errorf("expected range clamped to head 150, got %d", f.source.lastTo)
	}
}

func TestScanOnce_CaughtUpSkipsUpstream(t *testing.T) {
	f := newFixture(&mockSource{head: 500})
	ctx := context.Background()

	// Put the watermark at head.
	if _, err := f.mgr.LoadOrInit(ctx, "polygon", 100); err != nil {
		t.Fatal(err)
	}
	if err := f.mgr.Advance(ctx, "polygon", 500, 500); err != nil {
		t.Fatal(err)
	}

	res, err := f.scanner.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("ScanOnce failed: %v", err)
	}
	if res.Scanned != 0 || res.NewEvents != 0 {
		t.Errorf("expected zero result, got %+v", res)
	}
	if f.source.fetchCalls != 0 {
		t.Errorf("expected no fetch when caught up, got %d", f.source.fetchCalls)
	}

	count, _ := f.events.Count(ctx, "polygon")
	if count != 0 {
		t.Errorf("expected no stored events, got %d", count)
	}
}

func TestScanOnce_OverlappingRangesNeverDuplicate(t *testing.T) {
	f := newFixture(&mockSource{head: 500})
	ctx := context.Background()

	res1, err := f.scanner.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("first ScanOnce failed: %v", err)
	}

	// Emulate a crash-and-restart redelivery: a second scanner with a
	// fresh progress store rescans the same range against the shared
	// event store.
	sc2 := New(Config{
		SourceID:    "polygon",
		FloorHeight: 100,
		BatchSize:   100,
		Source:      f.source,
		Progress:    progress.NewManager(memory.NewProgressRepo(memory.NewStorage())),
		Events:      f.events,
	})

	res2, err := sc2.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("second ScanOnce failed: %v", err)
	}

	if res2.Scanned != res1.Scanned {
		t.Errorf("expected same range rescanned, got %d vs %d", res2.Scanned, res1.Scanned)
	}
	if res2.NewEvents != 0 {
		t.Errorf("expected 0 new events on redelivery, got %d", res2.NewEvents)
	}

	count, _ := f.events.Count(ctx, "polygon")
	if count != res1.NewEvents {
		t.Errorf("expected %d unique rows, got %d", res1.NewEvents, count)
	}
}

func TestScanOnce_ReentrancyGuard(t *testing.T) {
	blockCh := make(chan struct{})
	src := &mockSource{head: 500, blockCh: blockCh}
	f := newFixture(src)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := f.scanner.ScanOnce(ctx); err != nil {
			t.Errorf("blocked ScanOnce failed: %v", err)
		}
	}()

	// Wait for the first cycle to reach the upstream fetch.
	for {
		src.mu.Lock()
		started := src.fetchCalls > 0
		src.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	src.mu.Lock()
	heightBefore := src.heightCalls
	src.mu.Unlock()

	res, err := f.scanner.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("concurrent ScanOnce failed: %v", err)
	}
	if res.Scanned != 0 || res.NewEvents != 0 {
		t.Errorf("expected zero result from concurrent call, got %+v", res)
	}

	src.mu.Lock()
	heightAfter := src.heightCalls
	src.mu.Unlock()
	if heightAfter != heightBefore {
		t.Error("concurrent call must not touch the upstream")
	}

	close(blockCh)
	<-done
}

func TestScanOnce_FetchFailureKeepsWatermark(t *testing.T) {
	src := &mockSource{head: 500, fetchErr: errors.New("eth_getLogs failed: boom")}
	f := newFixture(src)
	ctx := context.Background()

	if _, err := f.scanner.ScanOnce(ctx); err == nil {
		t.Fatal("expected cycle failure")
	}

	p, _ := f.mgr.Get(ctx, "polygon")
	if p.Status != domain.ScanStatusError {
		t.Errorf("expected error status, got %s", p.Status)
	}
	if p.LastError == "" {
		t.Error("expected failure message recorded")
	}
	if p.LastScannedHeight != 99 {
		t.Errorf("watermark must not advance on failure, got %d", p.LastScannedHeight)
	}

	// The failed range is queued for rescan.
	ranges, _ := f.queue.Ranges(ctx, "polygon")
	if len(ranges) != 1 || ranges[0].FromHeight != 100 || ranges[0].ToHeight != 199 {
		t.Errorf("expected failed range [100,199] queued, got %+v", ranges)
	}
}

func TestScanOnce_DecodeFailureKeepsWatermark(t *testing.T) {
	src := &mockSource{head: 500, decodeErr: errors.New("decode log: expected 3 topics")}
	f := newFixture(src)
	ctx := context.Background()

	if _, err := f.scanner.ScanOnce(ctx); err == nil {
		t.Fatal("expected cycle failure")
	}

	p, _ := f.mgr.Get(ctx, "polygon")
	if p.LastScannedHeight != 99 {
		t.Errorf("watermark must not advance, got %d", p.LastScannedHeight)
	}

	count, _ := f.events.Count(ctx, "polygon")
	if count != 0 {
		t.Errorf("expected no partial rows, got %d", count)
	}
}

func TestScanOnce_RecoversAfterFailure(t *testing.T) {
	src := &mockSource{head: 500, fetchErr: errors.New("boom")}
	f := newFixture(src)
	ctx := context.Background()

	_, _ = f.scanner.ScanOnce(ctx)

	// Upstream heals; the same range is retried and the watermark moves.
	src.fetchErr = nil
	if _, err := f.scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("recovery cycle failed: %v", err)
	}

	p, _ := f.mgr.Get(ctx, "polygon")
	if p.LastScannedHeight != 199 {
		t.Errorf("expected watermark 199 after recovery, got %d", p.LastScannedHeight)
	}
	if p.Status != domain.ScanStatusIdle || p.LastError != "" {
		t.Errorf("expected clean idle row, got %+v", p)
	}
}
