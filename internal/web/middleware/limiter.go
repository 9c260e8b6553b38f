package middleware

import (
	"net/http"
	"sync/atomic"
)

// Limiter bounds how many requests run a handler at once. Up to queueSize
// further requests wait for a slot; beyond that requests are refused with
// 503. A waiting request whose context ends gets 504 and never runs.
type Limiter struct {
	waiting  chan struct{}
	inflight chan struct{}
	running  atomic.Int64
}

func NewLimiter(queueSize, maxInflight int) *Limiter {
	if maxInflight < 1 {
		maxInflight = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Limiter{
		waiting:  make(chan struct{}, queueSize+maxInflight),
		inflight: make(chan struct{}, maxInflight),
	}
}

// Running returns the number of requests currently inside the handler.
func (l *Limiter) Running() int {
	return int(l.running.Load())
}

func (l *Limiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case l.waiting <- struct{}{}:
		default:
			http.Error(w, "server busy", http.StatusServiceUnavailable)
			return
		}
		defer func() { <-l.waiting }()

		select {
		case l.inflight <- struct{}{}:
		case <-r.Context().Done():
			http.Error(w, "request canceled or timed out", http.StatusGatewayTimeout)
			return
		}
		l.running.Add(1)
		defer func() {
			l.running.Add(-1)
			<-l.inflight
		}()

		next.ServeHTTP(w, r)
	})
}
