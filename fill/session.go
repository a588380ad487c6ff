// Package fill drives a timed form-fill session: it snapshots the form
// schema, collects answers, counts the time limit down, and guarantees at
// most one persisted submission per session no matter how submit attempts
// race with the countdown.
package fill

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okelemen/formfill/log"
	"github.com/okelemen/formfill/model"
	"github.com/okelemen/formfill/validate"
)

type Status string

const (
	StatusFilling    Status = "filling"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
	StatusExpired    Status = "expired"
)

var (
	// ErrInFlight means another submit attempt holds the single-flight
	// guard; the caller's trigger is dropped.
	ErrInFlight = errors.New("fill: submit already in progress")
	// ErrSubmitted means the session already persisted its submission.
	ErrSubmitted = errors.New("fill: session already submitted")
	// ErrExpired means the countdown ran out and the auto-submit was
	// rejected; the session is over for good.
	ErrExpired = errors.New("fill: session expired")
	// ErrNotFilling means the session is not accepting answer updates.
	ErrNotFilling = errors.New("fill: session is not accepting answers")
)

// Ticker is the part of time.Ticker the countdown needs, so tests can
// drive ticks by hand instead of waiting on the wall clock.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc makes countdown tickers. The default wraps time.NewTicker.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

func NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

// SubmitFunc persists a validated answer set and returns the new
// submission id. Supplied by the HTTP layer, which owns the database.
type SubmitFunc func(ctx context.Context, answers map[string]any) (int, error)

// State is the observable snapshot of a session, served to the client so
// it can render the countdown and any submit outcome.
type State struct {
	Status       Status            `json:"status"`
	Remaining    *int              `json:"remaining,omitempty"`
	Errors       model.FieldErrors `json:"errors,omitempty"`
	SubmitError  string            `json:"submit_error,omitempty"`
	SubmissionID int               `json:"submission_id,omitempty"`
}

// Session is one user's in-progress fill of one form. All mutation goes
// through the methods; the zero value is not usable, use Start.
type Session struct {
	form   model.Form
	submit SubmitFunc

	events   chan func()
	stop     chan struct{}
	stopOnce sync.Once

	// owned by the session loop, never touched from outside it
	answers      map[string]any
	remaining    *int
	status       Status
	inFlight     bool
	fieldErrs    model.FieldErrors
	submitErr    error
	submissionID int
}

// Start snapshots the form and begins the session. Checkbox fields
// authored default-checked start out answered true. When the form carries
// a time limit the countdown begins immediately; there is no pause.
func Start(form model.Form, submit SubmitFunc, tickers TickerFunc) *Session {
	if tickers == nil {
		tickers = NewTicker
	}

	answers := map[string]any{}
	for _, f := range form.Fields {
		if f.Type == model.FieldCheckbox && f.Checked {
			answers[f.FieldKey()] = true
		}
	}

	s := &Session{
		form:    form,
		submit:  submit,
		events:  make(chan func()),
		stop:    make(chan struct{}),
		answers: answers,
		status:  StatusFilling,
	}
	if form.TimeLimit > 0 {
		remaining := form.TimeLimit
		s.remaining = &remaining
	}

	go s.loop(tickers)
	return s
}

// loop serializes every session event: user calls, countdown ticks and
// submit completions all run here one at a time, so no handler ever
// observes another one half-done. Persistence itself runs off-loop; that
// is the suspension the single-flight guard covers.
func (s *Session) loop(tickers TickerFunc) {
	var ticks <-chan time.Time
	if s.remaining != nil {
		ticker := tickers(time.Second)
		defer ticker.Stop()
		ticks = ticker.C()
	}

	for {
		select {
		case <-s.stop:
			return
		case event := <-s.events:
			event()
		case <-ticks:
			s.tick()
		}
	}
}

// dispatch runs fn on the session loop and waits for it. Returns false if
// the session was cancelled instead.
func (s *Session) dispatch(fn func()) bool {
	select {
	case <-s.stop:
		return false
	default:
	}

	done := make(chan struct{})
	select {
	case s.events <- func() { fn(); close(done) }:
		<-done
		return true
	case <-s.stop:
		return false
	}
}

func (s *Session) tick() {
	if s.status != StatusFilling || s.remaining == nil || *s.remaining <= 0 {
		return
	}
	*s.remaining--
	if *s.remaining > 0 {
		return
	}

	// countdown hit zero: expire and submit whatever answers are held
	log.Debugf("fill: form %d time limit reached, auto-submitting", s.form.ID)
	s.status = StatusExpired
	if !s.inFlight {
		s.beginSubmit(context.Background(), true)
	}
}

// SetAnswer records one answer. Only legal while filling; no validation
// happens per keystroke.
func (s *Session) SetAnswer(key string, value any) error {
	var err error
	ok := s.dispatch(func() {
		if s.status != StatusFilling {
			err = s.stateError()
			return
		}
		s.answers[key] = value
	})
	if !ok {
		return ErrNotFilling
	}
	return err
}

// Submit is the user-initiated submit attempt. The single-flight guard is
// checked and acquired synchronously on the session loop; a manual click
// landing while the timer's auto-submit is in flight comes back as
// ErrInFlight and persists nothing.
func (s *Session) Submit(ctx context.Context) error {
	var result <-chan error
	var err error
	ok := s.dispatch(func() {
		switch {
		case s.inFlight:
			err = ErrInFlight
		case s.status == StatusSubmitted:
			err = ErrSubmitted
		case s.status == StatusExpired && s.fieldErrs != nil:
			err = ErrExpired
		default:
			result = s.beginSubmit(ctx, false)
		}
	})
	if !ok {
		return ErrNotFilling
	}
	if err != nil {
		return err
	}

	select {
	case err = <-result:
		return err
	case <-s.stop:
		return ErrNotFilling
	}
}

// beginSubmit runs on the session loop. The guard is set before the
// persistence call — the only suspension point — so any trigger arriving
// while the store call is out sees it and backs off. timed marks the
// attempt as countdown-driven.
func (s *Session) beginSubmit(ctx context.Context, timed bool) <-chan error {
	result := make(chan error, 1)

	expired := timed || s.status == StatusExpired
	s.inFlight = true
	s.fieldErrs = nil
	s.submitErr = nil
	if !expired {
		s.status = StatusSubmitting
	}

	if err := validate.Answers(s.form, s.answers); err != nil {
		var fieldErrs model.FieldErrors
		errors.As(err, &fieldErrs)
		s.fieldErrs = fieldErrs
		s.inFlight = false
		if expired {
			// rejected at time-zero: nothing more this session can do
			log.Debugf("fill: form %d expired submit rejected: %s", s.form.ID, err)
			s.status = StatusExpired
			result <- ErrExpired
		} else {
			s.status = StatusFilling
			result <- fieldErrs
		}
		return result
	}

	answers := make(map[string]any, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}

	go func() {
		id, err := s.submit(ctx, answers)

		ok := s.dispatch(func() {
			s.inFlight = false
			if err != nil {
				log.Warnf("fill: form %d submit failed: %s", s.form.ID, err)
				s.submitErr = err
				if expired {
					// answers were valid, the store failed: expired
					// but still retryable
					s.status = StatusExpired
				} else {
					s.status = StatusFilling
				}
				result <- err
				return
			}
			s.submissionID = id
			s.status = StatusSubmitted
			result <- nil
		})
		if !ok {
			// cancelled mid-request; the store may still have persisted,
			// the unique submission index absorbs any replay
			result <- ErrNotFilling
		}
	}()
	return result
}

func (s *Session) stateError() error {
	switch s.status {
	case StatusSubmitted:
		return ErrSubmitted
	case StatusExpired:
		return ErrExpired
	default:
		return ErrNotFilling
	}
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() (state State) {
	ok := s.dispatch(func() {
		state.Status = s.status
		if s.remaining != nil {
			remaining := *s.remaining
			state.Remaining = &remaining
		}
		state.Errors = s.fieldErrs
		if s.submitErr != nil {
			state.SubmitError = s.submitErr.Error()
		}
		state.SubmissionID = s.submissionID
	})
	if !ok {
		state.Status = StatusFilling
	}
	return
}

// Cancel abandons the session: the countdown stops and nothing further is
// persisted. Safe to call more than once.
func (s *Session) Cancel() {
	s.stopOnce.Do(func() { close(s.stop) })
}
