// Package connectivity answers one question: is a usable network path
// currently active. The coordinator consults it before every fetch attempt
// so that a known-offline device goes straight to cached data instead of
// waiting out a timeout.
package connectivity

import (
	"context"
	"net"
	"time"
)

// Checker reports whether the network is currently reachable.
type Checker interface {
	Online(ctx context.Context) bool
}

// DialChecker probes reachability with a single TCP dial to a well-known
// address.
type DialChecker struct {
	Addr    string
	Timeout time.Duration
}

// NewDialChecker returns a checker probing addr, with a 3s default timeout.
func NewDialChecker(addr string) *DialChecker {
	return &DialChecker{Addr: addr, Timeout: 3 * time.Second}
}

func (c *DialChecker) Online(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Func adapts a plain function to the Checker interface. Tests use it to
// script connectivity transitions.
type Func func(ctx context.Context) bool

func (f Func) Online(ctx context.Context) bool {
	return f(ctx)
}
