package session

import (
	"log/slog"
	"time"
)

// sweepInterval is how often the janitor scans the registry for expired
// sessions. Expiry precision of one minute is plenty for TTLs measured in
// hours.
const sweepInterval = time.Minute

// StartJanitor launches a background goroutine that deletes sessions whose
// LastActivity is older than ttl. Sessions in StatusEvaluating are exempt —
// an in-flight evaluation must be able to publish its result. The goroutine
// exits when the returned stop function is called.
//
// A ttl of zero or less disables eviction entirely and StartJanitor returns a
// no-op stop function; by default the registry accumulates sessions for the
// process lifetime.
func (st *Store) StartJanitor(ttl time.Duration) (stop func()) {
	if ttl <= 0 {
		return func() {}
	}

	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				st.sweep(ttl)
			}
		}
	}()

	st.log.Info("session janitor started", slog.Duration("ttl", ttl))
	return func() { close(stopCh) }
}

// sweep deletes every non-Evaluating session idle for longer than ttl.
func (st *Store) sweep(ttl time.Duration) {
	cutoff := st.now().Add(-ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	for id, s := range st.sessions {
		if s.Status == StatusEvaluating {
			continue
		}
		if s.LastActivity.Before(cutoff) {
			delete(st.sessions, id)
			st.log.Info("session expired",
				slog.String("session_id", id),
				slog.String("status", string(s.Status)),
			)
		}
	}
}
