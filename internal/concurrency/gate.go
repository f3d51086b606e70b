// Package concurrency bounds how many requests the broker processes at
// once: a fixed concurrency budget with backpressure, exposed as a
// semaphore gate that HTTP middleware acquires for the lifetime of one
// request.
package concurrency

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrQueueFull is returned by Acquire when the wait queue is already full or
// the wait deadline expired before a slot freed up. A done ctx is reported
// as ctx.Err() instead.
var ErrQueueFull = errors.New("concurrency: request queue full")

// Config controls gate sizing.
type Config struct {
	MaxConcurrent int
	QueueSize     int
	WaitTimeout   time.Duration
}

// DefaultConfig returns sensible defaults for a small self-hosted broker.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 10, QueueSize: 100, WaitTimeout: 30 * time.Second}
}

// Gate admits at most MaxConcurrent callers at a time; additional callers
// wait in a bounded queue before being rejected with ErrQueueFull.
type Gate struct {
	sem     chan struct{}
	waiting chan struct{}
	timeout time.Duration
}

// New constructs a Gate from cfg, applying DefaultConfig for zero fields.
func New(cfg Config) *Gate {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultConfig().WaitTimeout
	}

	log.Printf("[concurrency] gate initialized: maxConcurrent=%d queue=%d timeout=%s",
		cfg.MaxConcurrent, cfg.QueueSize, cfg.WaitTimeout)

	return &Gate{
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		waiting: make(chan struct{}, cfg.QueueSize),
		timeout: cfg.WaitTimeout,
	}
}

// Acquire blocks until a concurrency slot is free, ctx is done, the wait
// queue is full, or the wait timeout elapses. On success it returns a
// release function the caller must call exactly once.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case g.waiting <- struct{}{}:
	default:
		return nil, ErrQueueFull
	}
	defer func() { <-g.waiting }()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case g.sem <- struct{}{}:
		return func() { <-g.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrQueueFull
	}
}

// InUse reports how many slots are currently occupied.
func (g *Gate) InUse() int {
	return len(g.sem)
}
