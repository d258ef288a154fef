package session

import (
	"testing"
	"time"
)

// Test_Sweep_EvictsIdleSessions verifies expired sessions are removed while
// fresh ones and in-flight evaluations survive.
func Test_Sweep_EvictsIdleSessions(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	base := time.Unix(1_000_000, 0)
	st.now = func() time.Time { return base }

	mustCreate(t, st, "stale")
	mustCreate(t, st, "evaluating")
	_ = st.SetTopicsAndQuestions("evaluating", []string{"t"}, []string{"q"})
	_ = st.RecordResponses("evaluating", []string{"a"})

	// One hour later a fresh session appears.
	st.now = func() time.Time { return base.Add(time.Hour) }
	mustCreate(t, st, "fresh")

	st.sweep(30 * time.Minute)

	if st.Get("stale") != nil {
		t.Error("stale session survived the sweep")
	}
	if st.Get("evaluating") == nil {
		t.Error("evaluating session was evicted mid-flight")
	}
	if st.Get("fresh") == nil {
		t.Error("fresh session was evicted")
	}
}

// Test_StartJanitor_ZeroTTLDisabled verifies a non-positive TTL is a no-op.
func Test_StartJanitor_ZeroTTLDisabled(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	stop := st.StartJanitor(0)
	stop() // must not panic; no goroutine was started
	mustCreate(t, st, "s1")
	if st.Len() != 1 {
		t.Errorf("want 1 session, got %d", st.Len())
	}
}
