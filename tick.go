package main

import (
	"context"
	"log"
	"time"
)

// idleSweepEvery is how many ticks pass between idle session sweeps.
const idleSweepEvery = 60

func startTickLoop(ctx context.Context, registry *SessionRegistry, interval time.Duration, logger *log.Logger) <-chan struct{} {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer ticker.Stop()

		tickCount := 0
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				registry.Each(func(s *Session) { s.Tick() })

				tickCount++
				if tickCount%idleSweepEvery == 0 {
					if n := registry.EvictIdle(ctx, t); n > 0 {
						logger.Println("Tick: evicted", n, "idle sessions, live", registry.Len())
					}
				}
			}
		}
	}()
	return done
}
