// Package bruteforce throttles credential guessing with in-memory counters.
// Failures are tracked per client address and per address-and-account pair;
// crossing either threshold blocks further attempts for a cooldown period,
// and every failure also earns the caller a growing delay.
package bruteforce

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBlocked reports that the source address, or this address-and-account
// pair, has failed too often and must wait out the block.
var ErrBlocked = errors.New("bruteforce: too many failed attempts")

// Config tunes the guard. Zero fields take the defaults below.
type Config struct {
	// MaxFailsPerUser blocks an address-and-account pair after this many
	// failures inside Window.
	MaxFailsPerUser int

	// MaxFailsPerIP blocks an address outright after this many failures
	// inside Window, across all accounts it tried.
	MaxFailsPerIP int

	// Window is the sliding period failures are counted over.
	Window time.Duration

	// Block is how long a tripped counter stays blocked.
	Block time.Duration

	// BaseDelay is the penalty added per accumulated failure; the total
	// delay is capped at MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

const (
	defaultMaxFailsPerUser = 5
	defaultMaxFailsPerIP   = 30
	defaultWindow          = 5 * time.Minute
	defaultBlock           = 15 * time.Minute
	defaultBaseDelay       = 150 * time.Millisecond
	defaultMaxDelay        = 2 * time.Second
)

func (c Config) withDefaults() Config {
	if c.MaxFailsPerUser <= 0 {
		c.MaxFailsPerUser = defaultMaxFailsPerUser
	}
	if c.MaxFailsPerIP <= 0 {
		c.MaxFailsPerIP = defaultMaxFailsPerIP
	}
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.Block <= 0 {
		c.Block = defaultBlock
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	return c
}

// entry is one counter. Its mutex only guards this entry, so contention on
// one address never serializes attempts from another.
type entry struct {
	mu           sync.Mutex
	fails        int
	windowStart  time.Time
	blockedUntil time.Time
}

// Guard is safe for concurrent use.
type Guard struct {
	cfg     Config
	entries sync.Map // string -> *entry

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Guard with the given config.
func New(cfg Config) *Guard {
	return &Guard{
		cfg:   cfg.withDefaults(),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Check returns ErrBlocked when either the address or the
// address-and-account pair is currently blocked. Call before verifying
// credentials.
func (g *Guard) Check(addr, account string) error {
	now := g.now()
	if g.blocked(ipKey(addr), now) || g.blocked(pairKey(addr, account), now) {
		return ErrBlocked
	}
	return nil
}

// RegisterFailure records a failed attempt for both counters and then holds
// the caller for the progressive penalty delay. The delay is cut short if
// ctx ends; the failure still counts.
func (g *Guard) RegisterFailure(ctx context.Context, addr, account string) error {
	now := g.now()

	pairFails := g.fail(pairKey(addr, account), now, g.cfg.MaxFailsPerUser)
	g.fail(ipKey(addr), now, g.cfg.MaxFailsPerIP)

	// The penalty scales with the failures against this account only; the
	// per-address tally feeds blocking, not the delay.
	delay := time.Duration(pairFails) * g.cfg.BaseDelay
	if delay > g.cfg.MaxDelay {
		delay = g.cfg.MaxDelay
	}
	return g.sleep(ctx, delay)
}

// ClearOnSuccess resets the address-and-account counter after a successful
// login. The per-address counter keeps its tally: a success on one account
// says nothing about an address spraying many.
func (g *Guard) ClearOnSuccess(addr, account string) {
	g.entries.Delete(pairKey(addr, account))
}

func (g *Guard) blocked(key string, now time.Time) bool {
	v, ok := g.entries.Load(key)
	if !ok {
		return false
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Before(e.blockedUntil)
}

// fail bumps a counter and returns its new tally. Crossing limit arms the
// block and restarts the window.
func (g *Guard) fail(key string, now time.Time, limit int) int {
	v, _ := g.entries.LoadOrStore(key, &entry{})
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.windowStart.IsZero() || now.Sub(e.windowStart) > g.cfg.Window {
		e.windowStart = now
		e.fails = 0
	}
	e.fails++
	tally := e.fails

	if e.fails >= limit {
		e.blockedUntil = now.Add(g.cfg.Block)
		e.windowStart = now
		e.fails = 0
	}
	return tally
}

func ipKey(addr string) string { return "ip\x00" + addr }

func pairKey(addr, account string) string { return "pair\x00" + addr + "\x00" + account }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
