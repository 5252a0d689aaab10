package report

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultRefreshInterval = 10 * time.Second

type refresher interface {
	Refresh(ctx context.Context) (bool, error)
}

// Poller re-fetches the result set on a fixed interval. A tick that fires
// while the previous refresh is still running is skipped.
type Poller struct {
	svc      refresher
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
	running  atomic.Bool

	mu      sync.Mutex
	cron    *cron.Cron
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewPoller(svc refresher, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		svc:      svc,
		interval: interval,
		timeout:  interval * 3,
		log:      log.Named("result_poller"),
	}
}

// Start runs one refresh immediately and then schedules the periodic task.
// It stops when ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return fmt.Errorf("result poller already started")
	}

	p.baseCtx, p.cancel = context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{p.log.Sugar()})))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", p.interval), p.tick); err != nil {
		p.cancel()
		return fmt.Errorf("schedule result refresh: %w", err)
	}
	p.cron = c

	go p.tick()
	c.Start()

	go func(done <-chan struct{}) {
		<-done
		p.Stop()
	}(p.baseCtx.Done())

	p.log.Info("result poller started", zap.Duration("interval", p.interval))
	return nil
}

// Stop cancels in-flight refreshes and waits for the scheduler to wind down.
func (p *Poller) Stop() {
	p.mu.Lock()
	c, cancel := p.cron, p.cancel
	p.cron, p.cancel = nil, nil
	p.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	p.log.Info("result poller stopped")
}

func (p *Poller) tick() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	defer p.running.Store(false)

	p.mu.Lock()
	base := p.baseCtx
	p.mu.Unlock()
	if base == nil || base.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(base, p.timeout)
	defer cancel()

	changed, err := p.svc.Refresh(ctx)
	if err != nil {
		p.log.Warn("result refresh failed, keeping current set", zap.Error(err))
		return
	}
	if changed {
		p.log.Debug("result set updated")
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
