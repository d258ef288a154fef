package session

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// newTestStore returns a Store with a silent default logger.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(slog.Default())
}

// mustCreate creates a session or fails the test.
func mustCreate(t *testing.T, st *Store, id string) *Session {
	t.Helper()
	s, err := st.Create(id, "Ada", "A 200-character job description stand-in used across the store tests.", "")
	if err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
	return s
}

func Test_Create_Duplicate(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	mustCreate(t, st, "s1")
	if _, err := st.Create("s1", "Bob", "another description", ""); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("want ErrAlreadyExists, got %v", err)
	}
}

// Test_Create_ConcurrentSameID verifies that of N racing Create calls with
// the same id exactly one succeeds.
func Test_Create_ConcurrentSameID(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.Create("race", "X", "jd", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != n-1 {
		t.Errorf("want 1 success / %d conflicts, got %d / %d", n-1, successes, conflicts)
	}
}

func Test_Get_ReturnsCopy(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	mustCreate(t, st, "s1")
	if err := st.SetTopicsAndQuestions("s1", []string{"go"}, []string{"q1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := st.Get("s1")
	got.Questions[0] = "tampered"
	got.Status = StatusError

	again := st.Get("s1")
	if again.Questions[0] != "q1" || again.Status != StatusReady {
		t.Errorf("store record was mutated through a Get copy: %+v", again)
	}
}

func Test_Require_NotFound(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	if _, err := st.Require("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

// Test_Publish_LengthInvariant verifies len(questions)==len(topics) is
// enforced at publish time and holds from the first Ready observation,
// including the zero-topic case.
func Test_Publish_LengthInvariant(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	mustCreate(t, st, "s1")

	if err := st.SetTopicsAndQuestions("s1", []string{"a", "b"}, []string{"only one"}); err == nil {
		t.Error("mismatched lengths accepted")
	}

	if err := st.SetTopicsAndQuestions("s1", nil, nil); err != nil {
		t.Fatalf("zero-topic publish: %v", err)
	}
	s := st.Get("s1")
	if s.Status != StatusReady || s.TotalQuestions() != 0 {
		t.Errorf("want Ready with 0 questions, got %s / %d", s.Status, s.TotalQuestions())
	}
}

func Test_Publish_WrongState(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	mustCreate(t, st, "s1")
	if err := st.SetTopicsAndQuestions("s1", []string{"t"}, []string{"q"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// Second publish must be rejected — the session is no longer Initializing.
	if err := st.SetTopicsAndQuestions("s1", []string{"t"}, []string{"q"}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("want ErrInvalidState, got %v", err)
	}
}

func Test_RecordResponses_LengthMismatch(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	mustCreate(t, st, "s1")
	if err := st.SetTopicsAndQuestions("s1", []string{"a", "b", "c"}, []string{"q1", "q2", "q3"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, n := range []int{0, 1, 2, 4} {
		resp := make([]string, n)
		if err := st.RecordResponses("s1", resp); !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("%d responses: want ErrLengthMismatch, got %v", n, err)
		}
	}

	if err := st.RecordResponses("s1", []string{"r1", "r2", "r3"}); err != nil {
		t.Fatalf("exact-length batch rejected: %v", err)
	}
	if got := st.Get("s1").Status; got != StatusEvaluating {
		t.Errorf("want Evaluating, got %s", got)
	}
}

// Test_RecordResponses_ZeroQuestions verifies the empty interview is a valid
// terminal "ready" state whose empty batch trivially satisfies the length check.
func Test_RecordResponses_ZeroQuestions(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	mustCreate(t, st, "s1")
	if err := st.SetTopicsAndQuestions("s1", nil, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := st.RecordResponses("s1", nil); err != nil {
		t.Fatalf("empty batch on zero-question session: %v", err)
	}
}

func Test_Transcript_RebuiltInOrder(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	mustCreate(t, st, "s1")
	if err := st.SetTopicsAndQuestions("s1", []string{"go", "sql"}, []string{"q-go", "q-sql"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := st.RecordResponses("s1", []string{"a-go", "a-sql"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	tr := st.Get("s1").Transcript
	if len(tr) != 2 {
		t.Fatalf("want 2 transcript entries, got %d", len(tr))
	}
	if tr[0].Index != 1 || tr[0].Topic != "go" || tr[0].Question != "q-go" || tr[0].Response != "a-go" {
		t.Errorf("entry 0 mismatch: %+v", tr[0])
	}
	if tr[1].Index != 2 || tr[1].Topic != "sql" || tr[1].Response != "a-sql" {
		t.Errorf("entry 1 mismatch: %+v", tr[1])
	}
}

// Test_Transitions_Monotonic walks the happy path and verifies no operation
// can move the session backward.
func Test_Transitions_Monotonic(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	mustCreate(t, st, "s1")

	if err := st.Complete("s1", "r", nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("complete from Initializing: want ErrInvalidState, got %v", err)
	}
	if err := st.RecordResponses("s1", nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("record from Initializing: want ErrInvalidState, got %v", err)
	}

	if err := st.SetTopicsAndQuestions("s1", []string{"t"}, []string{"q"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := st.RecordResponses("s1", []string{"a"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := st.Complete("s1", "well done", map[string]float64{"overall": 8.5}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	s := st.Get("s1")
	if s.Status != StatusCompleted || s.Report != "well done" || s.Scores["overall"] != 8.5 {
		t.Errorf("unexpected completed state: %+v", s)
	}

	// No backward moves from a terminal state.
	if err := st.RecordResponses("s1", []string{"a"}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("record after completion: want ErrInvalidState, got %v", err)
	}
	if err := st.Fail("s1", "too late"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("fail after completion: want ErrInvalidState, got %v", err)
	}
}

// Test_Fail_FromAnyNonTerminal verifies Error is reachable from every
// non-terminal status and freezes the record.
func Test_Fail_FromAnyNonTerminal(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	setups := map[string]func(id string){
		"initializing": func(string) {},
		"ready": func(id string) {
			_ = st.SetTopicsAndQuestions(id, []string{"t"}, []string{"q"})
		},
		"evaluating": func(id string) {
			_ = st.SetTopicsAndQuestions(id, []string{"t"}, []string{"q"})
			_ = st.RecordResponses(id, []string{"a"})
		},
	}

	for name, setup := range setups {
		mustCreate(t, st, name)
		setup(name)
		if err := st.Fail(name, "boom"); err != nil {
			t.Errorf("fail from %s: %v", name, err)
		}
		s := st.Get(name)
		if s.Status != StatusError || s.ErrMessage != "boom" {
			t.Errorf("fail from %s: got %s / %q", name, s.Status, s.ErrMessage)
		}
	}
}

func Test_Delete_Idempotent(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	mustCreate(t, st, "s1")

	if !st.Delete("s1") {
		t.Error("first delete returned false")
	}
	if st.Delete("s1") {
		t.Error("second delete returned true")
	}
	if st.Get("s1") != nil {
		t.Error("session still present after delete")
	}
}

func Test_Mutations_RefreshLastActivity(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	// Deterministic clock: each call advances one second.
	var tick int64
	st.now = func() time.Time {
		tick++
		return time.Unix(tick, 0)
	}

	mustCreate(t, st, "s1")
	before := st.Get("s1").LastActivity
	if err := st.SetTopicsAndQuestions("s1", []string{"t"}, []string{"q"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	after := st.Get("s1").LastActivity
	if !after.After(before) {
		t.Errorf("LastActivity not refreshed: %v -> %v", before, after)
	}
}
