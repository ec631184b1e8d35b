/*
scheduler.go - Periodic ledger audit

PURPOSE:
  Replays the ledger of every active employee on an interval and logs any
  employee whose cached aggregates disagree with the log. It never
  corrects anything; a mismatch is for a human to look at.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Walks the directory by id cursor so large payrolls are not loaded at once
    and rows added or deactivated mid-pass do not shift later pages
  - Each employee is reconciled under its own row lock (Ledger.Reconcile)
  - Store unavailability aborts the run; the next tick tries again

USAGE:
  scheduler := NewAuditScheduler(handler.Ledger, handler.Directory, logger)
  scheduler.CheckInterval = cfg.AuditInterval
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/payroll-ledger/payroll"
)

const defaultAuditPageSize = 200

// AuditResult summarises one pass over the directory.
type AuditResult struct {
	Checked      int
	Inconsistent []payroll.Reconciliation
	Failed       int
	StartedAt    time.Time
	Duration     time.Duration
}

// AuditScheduler handles automated ledger reconciliation.
type AuditScheduler struct {
	Ledger        *payroll.Ledger
	Directory     *payroll.Directory
	CheckInterval time.Duration
	PageSize      int
	Enabled       bool

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   *AuditResult
}

func NewAuditScheduler(ledger *payroll.Ledger, dir *payroll.Directory, logger *zap.Logger) *AuditScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditScheduler{
		Ledger:        ledger,
		Directory:     dir,
		CheckInterval: time.Hour,
		PageSize:      defaultAuditPageSize,
		Enabled:       true,
		logger:        logger,
	}
}

// Start begins the scheduler. A non-positive interval disables it.
func (s *AuditScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		s.logger.Info("ledger audit disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.logger.Info("ledger audit started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *AuditScheduler) Stop() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker, s.stop = nil, nil
	s.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	s.wg.Wait()
	s.logger.Info("ledger audit stopped")
}

// LastResult returns the outcome of the most recent pass, or nil.
func (s *AuditScheduler) LastResult() *AuditResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *AuditScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-stop:
			return
		}
	}
}

// RunOnce audits every active employee and returns the result.
func (s *AuditScheduler) RunOnce(ctx context.Context) AuditResult {
	res := AuditResult{StartedAt: time.Now()}
	pageSize := s.PageSize
	switch {
	case pageSize <= 0:
		pageSize = defaultAuditPageSize
	case pageSize > payroll.MaxTransactionLimit:
		pageSize = payroll.MaxTransactionLimit
	}

	var lastID int64
	for {
		views, err := s.Directory.List(ctx, payroll.EmployeeFilter{
			SortBy:  "id",
			Page:    1,
			Limit:   pageSize,
			AfterID: lastID,
		})
		if err != nil {
			s.logger.Error("ledger audit aborted", zap.Int64("after_id", lastID), zap.Error(err))
			break
		}

		aborted := false
		for _, v := range views {
			lastID = v.ID
			rec, err := s.Ledger.Reconcile(ctx, v.ID)
			switch {
			case err == nil:
				res.Checked++
				if !rec.Consistent {
					res.Inconsistent = append(res.Inconsistent, *rec)
				}
			case errors.Is(err, payroll.ErrStoreUnavailable) || ctx.Err() != nil:
				s.logger.Warn("ledger audit aborted", zap.Int64("employee_id", v.ID), zap.Error(err))
				aborted = true
			case payroll.IsNotFound(err):
				// Deactivated since the page was read.
			default:
				res.Failed++
				s.logger.Error("reconcile failed", zap.Int64("employee_id", v.ID), zap.Error(err))
			}
			if aborted {
				break
			}
		}
		if aborted || len(views) < pageSize {
			break
		}
	}

	res.Duration = time.Since(res.StartedAt)
	s.logger.Info("ledger audit finished",
		zap.Int("checked", res.Checked),
		zap.Int("inconsistent", len(res.Inconsistent)),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)

	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()
	return res
}
