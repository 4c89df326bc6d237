// Package clock provides the time source of the billing engine.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts the current time so that billing runs can be replayed
type Clock interface {
	Now() time.Time
}

// Real returns the actual current time.
type Real struct{}

// NewReal returns the wall clock, typed as Clock for dependency injection
func NewReal() Clock {
	return Real{}
}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Fake provides a controllable clock for testing.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set sets the fake current time.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake time forward by duration d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// AdvanceDays moves the fake time forward by whole calendar days.
func (f *Fake) AdvanceDays(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.AddDate(0, 0, n)
}
