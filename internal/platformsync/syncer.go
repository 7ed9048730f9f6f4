package platformsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/metrics-hub/internal/domain"
	"github.com/ignite/metrics-hub/internal/metrics"
	"github.com/ignite/metrics-hub/internal/pkg/distlock"
	"github.com/ignite/metrics-hub/internal/pkg/logger"
)

// LockFunc returns a fresh lock for one round. Locks are not shared between
// rounds because a DistLock holds per-acquisition state.
type LockFunc func() distlock.DistLock

// Config holds configuration for the syncer.
type Config struct {
	Interval     time.Duration // time between rounds when started
	LookbackDays int           // days fetched per round, today included
	Concurrency  int           // accounts fetched in parallel
}

// AccountResult is the outcome for one account.
type AccountResult struct {
	AccountID string          `json:"account_id"`
	Platform  domain.Platform `json:"platform"`
	Entries   int             `json:"entries"`
	Error     string          `json:"error,omitempty"`
}

// Report describes one sync round. Skipped is set when another worker held
// the lock and nothing was done.
type Report struct {
	Range      domain.DateRange `json:"range"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Skipped    bool             `json:"skipped"`
	Synced     int              `json:"synced"`
	Failed     int              `json:"failed"`
	Accounts   []AccountResult  `json:"accounts"`
}

// Outcome labels the round for metrics: ok, partial, failed or skipped.
func (r *Report) Outcome() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Failed == 0:
		return "ok"
	case r.Synced == 0:
		return "failed"
	default:
		return "partial"
	}
}

// Syncer runs sync rounds on demand or on a ticker.
type Syncer struct {
	store       Store
	lock        LockFunc
	sources     map[domain.Platform]Source
	invalidator Invalidator
	cfg         Config
	now         func() time.Time

	// Stats
	totalRounds   int64
	totalEntries  int64
	totalFailures int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// NewSyncer creates a syncer over the given sources. A later source for the
// same platform replaces an earlier one.
func NewSyncer(store Store, lock LockFunc, cfg Config, sources ...Source) *Syncer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	s := &Syncer{
		store:   store,
		lock:    lock,
		sources: make(map[domain.Platform]Source, len(sources)),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, src := range sources {
		s.sources[src.Platform()] = src
	}
	return s
}

// WithInvalidator registers a cache to drop after rounds that stored entries.
func (s *Syncer) WithInvalidator(i Invalidator) *Syncer {
	s.invalidator = i
	return s
}

// Platforms lists the platforms with a registered source.
func (s *Syncer) Platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(s.sources))
	for p := range s.sources {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Start begins the periodic sync goroutine. The first round runs immediately.
func (s *Syncer) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	logger.Info("platform sync starting", "interval", s.cfg.Interval, "concurrency", s.cfg.Concurrency,
		"lookback_days", s.cfg.LookbackDays)

	s.wg.Add(1)
	go s.loop()
}

// Stop cancels the current round and waits for the loop to exit.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info("platform sync stopped",
		"rounds", atomic.LoadInt64(&s.totalRounds),
		"entries", atomic.LoadInt64(&s.totalEntries),
		"failures", atomic.LoadInt64(&s.totalFailures))
}

// IsRunning returns whether the periodic loop is active.
func (s *Syncer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Stats returns counters since process start.
func (s *Syncer) Stats() map[string]int64 {
	return map[string]int64{
		"total_rounds":   atomic.LoadInt64(&s.totalRounds),
		"total_entries":  atomic.LoadInt64(&s.totalEntries),
		"total_failures": atomic.LoadInt64(&s.totalFailures),
	}
}

func (s *Syncer) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(s.ctx); err != nil && s.ctx.Err() == nil {
			logger.Error("platform sync round failed", "error", err)
		}
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce runs one round. When another worker holds the lock the report is
// marked Skipped and no error is returned. Per-account failures are reported,
// not returned.
func (s *Syncer) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: s.now().UTC()}
	err := distlock.Run(ctx, s.lock(), func(ctx context.Context) error {
		return s.syncAll(ctx, report)
	})
	report.FinishedAt = s.now().UTC()

	if errors.Is(err, distlock.ErrNotAcquired) {
		report.Skipped = true
		metrics.RecordSync(report.Outcome())
		logger.Info("platform sync skipped, lock held elsewhere")
		return report, nil
	}
	if err != nil {
		metrics.RecordSync("failed")
		return nil, err
	}

	atomic.AddInt64(&s.totalRounds, 1)
	metrics.RecordSync(report.Outcome())
	logger.Info("platform sync finished", "start", report.Range.Start, "end", report.Range.End,
		"synced", report.Synced, "failed", report.Failed, "took", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (s *Syncer) syncAll(ctx context.Context, report *Report) error {
	report.Range = domain.LastNDays(s.now(), s.cfg.LookbackDays)
	if len(s.sources) == 0 {
		logger.Warn("platform sync has no sources configured")
		return nil
	}

	accounts, err := s.store.ActiveAccounts(ctx, s.Platforms())
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	results := make([]AccountResult, len(accounts))
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

dispatch:
	for i, acc := range accounts {
		select {
		case <-ctx.Done():
			for j := i; j < len(accounts); j++ {
				results[j] = AccountResult{AccountID: accounts[j].ID, Platform: accounts[j].Platform, Error: ctx.Err().Error()}
			}
			break dispatch
		case sem <- struct{}{}:
			wg.Add(1)
			go func(i int, acc domain.SocialAccount) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = s.syncAccount(ctx, acc, report.Range)
			}(i, acc)
		}
	}
	wg.Wait()

	stored := 0
	for _, r := range results {
		if r.Error != "" {
			report.Failed++
			continue
		}
		report.Synced++
		stored += r.Entries
	}
	sort.Slice(results, func(i, j int) bool { return results[i].AccountID < results[j].AccountID })
	report.Accounts = results

	if stored > 0 && s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			logger.Warn("overview cache invalidation failed", "error", err)
		}
	}
	return nil
}

func (s *Syncer) syncAccount(ctx context.Context, acc domain.SocialAccount, rng domain.DateRange) AccountResult {
	res := AccountResult{AccountID: acc.ID, Platform: acc.Platform}
	fail := func(err error) AccountResult {
		res.Error = err.Error()
		atomic.AddInt64(&s.totalFailures, 1)
		metrics.SyncAccountFailures.WithLabelValues(string(acc.Platform)).Inc()
		logger.Warn("account sync failed", "account_id", acc.ID, "platform", string(acc.Platform), "error", err)
		return res
	}

	src, ok := s.sources[acc.Platform]
	if !ok {
		return fail(fmt.Errorf("no source for platform %s", acc.Platform))
	}
	fetched, err := src.FetchMetrics(ctx, acc, rng)
	if err != nil {
		return fail(fmt.Errorf("fetch: %w", err))
	}

	entries := make([]domain.PlatformMetricEntry, 0, len(fetched))
	for _, e := range fetched {
		if e.MetricType == "" || !rng.Contains(e.Date) {
			continue
		}
		e.AccountID = acc.ID
		e.Platform = acc.Platform
		entries = append(entries, e)
	}
	if len(entries) > 0 {
		if err := s.store.UpsertMetricEntries(ctx, entries); err != nil {
			return fail(fmt.Errorf("store: %w", err))
		}
	}

	res.Entries = len(entries)
	atomic.AddInt64(&s.totalEntries, int64(len(entries)))
	metrics.SyncEntriesStored.WithLabelValues(string(acc.Platform)).Add(float64(len(entries)))
	logger.Debug("account synced", "account_id", acc.ID, "platform", string(acc.Platform), "entries", len(entries))
	return res
}
