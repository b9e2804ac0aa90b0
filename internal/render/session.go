package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// State tracks where a session is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateStabilizing
	StateReady
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNavigating:
		return "navigating"
	case StateStabilizing:
		return "stabilizing"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Health is the connection-health state, tracked in parallel with State.
// A raw disconnect signal only suspends the session; disposal requires a
// second failed probe after the debounce window, so long-running JS does not
// trigger false-positive session churn.
type Health int

const (
	HealthConnected Health = iota
	HealthSuspectedDisconnect
	HealthConfirmedDisconnect
)

func (h Health) String() string {
	switch h {
	case HealthConnected:
		return "connected"
	case HealthSuspectedDisconnect:
		return "suspected_disconnect"
	case HealthConfirmedDisconnect:
		return "confirmed_disconnect"
	default:
		return "unknown"
	}
}

// ErrConfirmedDisconnect marks a session whose browser connection is gone
// after debounced re-probing. The session is disposed and replaced.
var ErrConfirmedDisconnect = errors.New("render session disconnect confirmed")

const defaultProbeTimeout = 3 * time.Second

// session owns one headless browser tab context. All state transitions go
// through setState/probe; callers never touch health flags directly.
type session struct {
	id int

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu     sync.Mutex
	state  State
	health Health

	debounce time.Duration
	logger   *slog.Logger
}

func newSession(parent context.Context, id int, opts Options, logger *slog.Logger) (*session, error) {
	headless := !opts.DisableHeadless
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	}
	if opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, execOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &session{
		id:          id,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		state:       StateIdle,
		health:      HealthConnected,
		debounce:    opts.Debounce,
		logger:      logger.With("session", id),
	}
	if s.debounce <= 0 {
		s.debounce = 2 * time.Second
	}
	return s, nil
}

func (s *session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next {
		s.logger.Debug("session state", "from", prev.String(), "to", next.String())
	}
}

func (s *session) currentHealth() Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

func (s *session) setHealth(next Health) {
	s.mu.Lock()
	s.health = next
	s.mu.Unlock()
}

// probe checks browser responsiveness with a trivial script evaluation.
// Called before any navigation, content-extraction, or DOM-query operation.
func (s *session) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	var one int
	err := chromedp.Run(s.tabCtx, chromedp.ActionFunc(func(runCtx context.Context) error {
		select {
		case <-probeCtx.Done():
			return probeCtx.Err()
		default:
		}
		return chromedp.Evaluate(`1`, &one).Do(runCtx)
	}))
	if err != nil {
		return fmt.Errorf("connectivity probe: %w", err)
	}
	if one != 1 {
		return errors.New("connectivity probe returned unexpected value")
	}
	return nil
}

// checkHealth runs the probe, escalating through the health state machine.
// A first failure marks the session suspect; a second failure after the
// debounce window confirms the disconnect and the caller must dispose.
func (s *session) checkHealth(ctx context.Context) error {
	if err := s.probe(ctx); err == nil {
		s.setHealth(HealthConnected)
		return nil
	}

	s.setHealth(HealthSuspectedDisconnect)
	s.logger.Warn("session disconnect suspected, debouncing", "window", s.debounce.String())

	timer := time.NewTimer(s.debounce)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := s.probe(ctx); err != nil {
		s.setHealth(HealthConfirmedDisconnect)
		return fmt.Errorf("%w: %v", ErrConfirmedDisconnect, err)
	}
	s.setHealth(HealthConnected)
	return nil
}

func (s *session) dispose() {
	s.setState(StateDisposed)
	s.tabCancel()
	s.allocCancel()
}
