package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type SessionEvictor interface {
	EvictOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// SessionSweeper periodically drops idle accumulation sessions so abandoned
// conversations do not pile up in memory.
type SessionSweeper struct {
	tracer   trace.Tracer
	sessions SessionEvictor
	ttl      time.Duration
	interval time.Duration
}

func NewSessionSweeper(tracer trace.Tracer, sessions SessionEvictor, ttl, interval time.Duration) *SessionSweeper {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionSweeper{tracer: tracer, sessions: sessions, ttl: ttl, interval: interval}
}

// Start blocks until ctx is cancelled.
func (s *SessionSweeper) Start(ctx context.Context) {
	if s.sessions == nil {
		log.Println("Session sweeper disabled: no session store")
		<-ctx.Done()
		return
	}

	log.Println("Session sweeper starting...")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Session sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	_, span := s.tracer.Start(ctx, "session-sweeper.sweep")
	defer span.End()

	evicted, err := s.sessions.EvictOlderThan(ctx, s.ttl)
	if err != nil {
		log.Printf("session sweep error: %v", err)
		return
	}
	if evicted > 0 {
		log.Printf("evicted %d idle sessions", evicted)
	}
}
