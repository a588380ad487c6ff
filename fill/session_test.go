package fill

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okelemen/formfill/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTicker lets tests fire countdown ticks by hand. A send on tick
// returns once the session loop has picked the tick up, and the loop runs
// the tick handler to completion before serving the next call, so state
// observed after tick() is post-tick state.
type fakeTicker struct {
	tick    chan time.Time
	stopped atomic.Bool
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{tick: make(chan time.Time)}
}

func (t *fakeTicker) C() <-chan time.Time { return t.tick }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

func (t *fakeTicker) factory() TickerFunc {
	return func(time.Duration) Ticker { return t }
}

func (t *fakeTicker) fire() { t.tick <- time.Now() }

// recordingStore counts persisted submissions and can be made to block or
// fail.
type recordingStore struct {
	calls   atomic.Int32
	failing atomic.Bool
	gate    chan struct{}
}

func (st *recordingStore) submit(ctx context.Context, answers map[string]any) (int, error) {
	st.calls.Add(1)
	if st.gate != nil {
		<-st.gate
	}
	if st.failing.Load() {
		return 0, errors.New("store down")
	}
	return 42, nil
}

func checkboxForm(timeLimit int) model.Form {
	return model.Form{
		ID:        7,
		Name:      "quick poll",
		TimeLimit: timeLimit,
		Fields: []model.Field{
			{Label: "Agrees", Type: model.FieldCheckbox},
		},
	}
}

func requiredTextForm(timeLimit int) model.Form {
	return model.Form{
		ID:        7,
		Name:      "quiz",
		TimeLimit: timeLimit,
		Fields: []model.Field{
			{Label: "First Name", Type: model.FieldText},
		},
	}
}

func waitForStatus(t *testing.T, s *Session, want Status) State {
	t.Helper()
	var state State
	require.Eventually(t, func() bool {
		state = s.Snapshot()
		return state.Status == want
	}, time.Second, time.Millisecond, "status never became %s (last %s)", want, state.Status)
	return state
}

func TestStartWithoutTimeLimit(t *testing.T) {
	store := &recordingStore{}
	s := Start(checkboxForm(0), store.submit, nil)
	defer s.Cancel()

	state := s.Snapshot()
	assert.Equal(t, StatusFilling, state.Status)
	assert.Nil(t, state.Remaining)
}

func TestDefaultCheckedBoxesPreAnswered(t *testing.T) {
	form := checkboxForm(0)
	form.Fields[0].Checked = true
	store := &recordingStore{}
	s := Start(form, store.submit, nil)
	defer s.Cancel()

	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, 42, s.Snapshot().SubmissionID)
}

func TestCountdownDecrements(t *testing.T) {
	tk := newFakeTicker()
	store := &recordingStore{}
	s := Start(checkboxForm(3), store.submit, tk.factory())
	defer s.Cancel()

	require.NotNil(t, s.Snapshot().Remaining)
	assert.Equal(t, 3, *s.Snapshot().Remaining)

	tk.fire()
	assert.Equal(t, 2, *s.Snapshot().Remaining)
	tk.fire()
	assert.Equal(t, 1, *s.Snapshot().Remaining)
}

// After timeLimit ticks with no interaction the session expires and makes
// exactly one submit attempt.
func TestExpiryAutoSubmitsOnce(t *testing.T) {
	tk := newFakeTicker()
	store := &recordingStore{}
	s := Start(checkboxForm(3), store.submit, tk.factory())
	defer s.Cancel()

	tk.fire()
	tk.fire()
	tk.fire()

	state := waitForStatus(t, s, StatusSubmitted)
	assert.Equal(t, 42, state.SubmissionID)
	assert.EqualValues(t, 1, store.calls.Load())
}

// A rejected auto-submit at time-zero is terminal: the session stays
// expired, reports the field errors, and refuses further submits.
func TestExpiredAutoSubmitRejectedIsTerminal(t *testing.T) {
	tk := newFakeTicker()
	store := &recordingStore{}
	s := Start(requiredTextForm(1), store.submit, tk.factory())
	defer s.Cancel()

	tk.fire()

	state := s.Snapshot()
	assert.Equal(t, StatusExpired, state.Status)
	require.NotEmpty(t, state.Errors)
	assert.Equal(t, model.ErrRequired, state.Errors[0].Code)
	assert.EqualValues(t, 0, store.calls.Load())

	assert.ErrorIs(t, s.Submit(context.Background()), ErrExpired)
	assert.ErrorIs(t, s.SetAnswer("First_Name", "late"), ErrExpired)
}

// Manual submit racing the timer's auto-submit: the single-flight guard
// makes exactly one submission, never zero, never two.
func TestManualSubmitDuringAutoSubmitIsSuppressed(t *testing.T) {
	tk := newFakeTicker()
	store := &recordingStore{gate: make(chan struct{})}
	s := Start(checkboxForm(1), store.submit, tk.factory())
	defer s.Cancel()

	tk.fire() // expires; auto-submit now blocked in the store

	err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInFlight)

	close(store.gate)
	waitForStatus(t, s, StatusSubmitted)
	assert.EqualValues(t, 1, store.calls.Load())
}

func TestTimerDuringManualSubmitDoesNotDoubleSubmit(t *testing.T) {
	tk := newFakeTicker()
	store := &recordingStore{gate: make(chan struct{})}
	s := Start(checkboxForm(2), store.submit, tk.factory())
	defer s.Cancel()

	tk.fire()

	submitErr := make(chan error, 1)
	go func() { submitErr <- s.Submit(context.Background()) }()

	// wait for the manual submit to reach the store, then let the last
	// tick fire against the in-flight attempt
	require.Eventually(t, func() bool { return store.calls.Load() == 1 },
		time.Second, time.Millisecond)
	tk.fire()

	close(store.gate)
	require.NoError(t, <-submitErr)
	waitForStatus(t, s, StatusSubmitted)
	assert.EqualValues(t, 1, store.calls.Load())
}

// Validation failure on a manual submit returns the session to filling;
// fixing the answer and resubmitting succeeds.
func TestValidationFailureReturnsToFilling(t *testing.T) {
	store := &recordingStore{}
	s := Start(requiredTextForm(0), store.submit, nil)
	defer s.Cancel()

	err := s.Submit(context.Background())
	var fieldErrs model.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, model.ErrRequired, fieldErrs[0].Code)
	assert.Equal(t, StatusFilling, s.Snapshot().Status)
	assert.EqualValues(t, 0, store.calls.Load())

	require.NoError(t, s.SetAnswer("First_Name", "Ada"))
	require.NoError(t, s.Submit(context.Background()))
	assert.EqualValues(t, 1, store.calls.Load())
}

// A store failure after validation passes is retryable: answers are
// preserved and the session goes back to filling.
func TestStoreFailureIsRetryable(t *testing.T) {
	store := &recordingStore{}
	store.failing.Store(true)
	s := Start(requiredTextForm(0), store.submit, nil)
	defer s.Cancel()

	require.NoError(t, s.SetAnswer("First_Name", "Ada"))

	err := s.Submit(context.Background())
	require.Error(t, err)
	var fieldErrs model.FieldErrors
	assert.False(t, errors.As(err, &fieldErrs), "store failure must not look like validation")

	state := s.Snapshot()
	assert.Equal(t, StatusFilling, state.Status)
	assert.NotEmpty(t, state.SubmitError)

	store.failing.Store(false)
	require.NoError(t, s.Submit(context.Background()))
	assert.EqualValues(t, 2, store.calls.Load())
}

func TestResubmitAfterSuccessRejected(t *testing.T) {
	store := &recordingStore{}
	s := Start(checkboxForm(0), store.submit, nil)
	defer s.Cancel()

	require.NoError(t, s.Submit(context.Background()))
	assert.ErrorIs(t, s.Submit(context.Background()), ErrSubmitted)
	assert.ErrorIs(t, s.SetAnswer("Agrees", true), ErrSubmitted)
	assert.EqualValues(t, 1, store.calls.Load())
}

func TestCancelStopsEverything(t *testing.T) {
	tk := newFakeTicker()
	store := &recordingStore{}
	s := Start(checkboxForm(5), store.submit, tk.factory())

	s.Cancel()
	s.Cancel() // idempotent

	assert.ErrorIs(t, s.SetAnswer("Agrees", true), ErrNotFilling)
	assert.ErrorIs(t, s.Submit(context.Background()), ErrNotFilling)
	assert.EqualValues(t, 0, store.calls.Load())
}

func TestManagerOneSessionPerUserAndForm(t *testing.T) {
	m := NewManager()
	store := &recordingStore{}
	form := checkboxForm(0)

	s1 := m.Start(form, 1, store.submit, nil)
	s2 := m.Start(form, 1, store.submit, nil)
	assert.Same(t, s1, s2)

	other := m.Start(form, 2, store.submit, nil)
	assert.NotSame(t, s1, other)

	got, ok := m.Get(form.ID, 1)
	require.True(t, ok)
	assert.Same(t, s1, got)

	m.Drop(form.ID, 1)
	_, ok = m.Get(form.ID, 1)
	assert.False(t, ok)
	assert.ErrorIs(t, s1.Submit(context.Background()), ErrNotFilling)
}
