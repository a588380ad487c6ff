package routes

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"
	"github.com/go-chi/render"
	"github.com/mattn/go-sqlite3"
	"github.com/okelemen/formfill/app"
	"github.com/okelemen/formfill/fill"
	"github.com/okelemen/formfill/httpx"
	"github.com/okelemen/formfill/log"
	"github.com/okelemen/formfill/model"
	"github.com/okelemen/formfill/validate"
)

// ErrAlreadySubmitted maps the store's uniqueness violation: this user
// already has a submission for this form.
var ErrAlreadySubmitted = errors.New("already submitted")

// currentUser reads the identity snapshot the credentials verifier put
// into the token claims.
func currentUser(r *http.Request) (user model.User, ok bool) {
	claims, ok := r.Context().Value(oauth.ClaimsContext).(map[string]string)
	if !ok {
		return
	}

	id, err := strconv.Atoi(claims["user_id"])
	if err != nil {
		return model.User{}, false
	}

	return model.User{
		ID:    id,
		Name:  claims["name"],
		Email: claims["email"],
	}, true
}

// insertSubmission persists one answer set, snapshotting the submitting
// identity. The unique (form_id, user_id) index turns a duplicate into
// ErrAlreadySubmitted.
func insertSubmission(app app.App, form model.Form, user model.User) fill.SubmitFunc {
	return func(ctx context.Context, answers map[string]any) (int, error) {
		doc, err := model.EncodeAnswers(answers)
		if err != nil {
			return 0, err
		}

		var submissionId int
		err = app.QueryRowContext(ctx, `
			INSERT INTO submission (form_id, user_id, user_name, user_email, answers, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`,
			form.ID,
			user.ID,
			user.Name,
			user.Email,
			doc,
			time.Now(),
		).Scan(&submissionId)

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return 0, ErrAlreadySubmitted
		}
		if err != nil {
			return 0, err
		}
		return submissionId, nil
	}
}

// StartFill opens (or returns) the user's fill session for a form. The
// countdown, when the form has a time limit, starts here.
func StartFill(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}
		user, ok := currentUser(r)
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "fill.start.claims")
			return
		}

		form, err := loadForm(app, r, formId)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, "fill.start", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.fill.start.get_form", err)
			return
		}

		var submitted bool
		err = app.QueryRowContext(r.Context(), `
			SELECT 1 FROM submission
			WHERE form_id = ?
				AND user_id = ?`,
			formId,
			user.ID,
		).Scan(&submitted)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			httpx.LogInternalError(w, "db.fill.start.get_submission", err)
			return
		}
		if submitted {
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "fill.start.already_submitted")
			return
		}

		session := app.Sessions.Start(form, user.ID, insertSubmission(app, form, user), nil)

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, session.Snapshot())
	}
}

// UpdateFill merges answer updates into the running session.
func UpdateFill(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}
		user, ok := currentUser(r)
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "fill.update.claims")
			return
		}

		var body struct {
			Answers map[string]any `json:"answers"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		session, ok := app.Sessions.Get(formId, user.ID)
		if !ok {
			httpx.LogNotFound(w, "fill.update", formId)
			return
		}

		for key, value := range body.Answers {
			if err := session.SetAnswer(key, value); err != nil {
				fillStateError(w, "fill.update", err)
				return
			}
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// SubmitForm submits the user's answers. With a running session this goes
// through the session's single-flight submit, racing fairly against the
// countdown; without one it validates and persists directly.
func SubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}
		user, ok := currentUser(r)
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "submit.claims")
			return
		}

		if session, ok := app.Sessions.Get(formId, user.ID); ok {
			submitSession(app, w, r, formId, user, session)
			return
		}

		// sessionless submit: the client kept its own state
		var body struct {
			Answers map[string]any `json:"answers"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if body.Answers == nil {
			body.Answers = map[string]any{}
		}

		form, err := loadForm(app, r, formId)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, "submit", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.submit.get_form", err)
			return
		}

		// server-side validation: the client's run is advisory only
		if err := validate.Answers(form, body.Answers); err != nil {
			var fieldErrs model.FieldErrors
			errors.As(err, &fieldErrs)
			httpx.RenderFieldErrors(w, r, "submit.validate", fieldErrs)
			return
		}

		submissionId, err := insertSubmission(app, form, user)(r.Context(), body.Answers)
		if errors.Is(err, ErrAlreadySubmitted) {
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "submit.already_submitted")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.insert_submission", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": submissionId,
		})
	}
}

func submitSession(app app.App, w http.ResponseWriter, r *http.Request, formId int, user model.User, session *fill.Session) {
	err := session.Submit(r.Context())

	var fieldErrs model.FieldErrors
	switch {
	case err == nil:
		state := session.Snapshot()
		app.Sessions.Drop(formId, user.ID)
		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": state.SubmissionID,
		})
	case errors.As(err, &fieldErrs):
		httpx.RenderFieldErrors(w, r, "submit.validate", fieldErrs)
	case errors.Is(err, ErrAlreadySubmitted):
		httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "submit.already_submitted")
	case errors.Is(err, fill.ErrInFlight):
		// the countdown's auto-submit got there first; not an error
		httpx.LogStatus(w, http.StatusAccepted, log.DebugLevel, "submit.in_flight")
	case errors.Is(err, fill.ErrSubmitted):
		httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "submit.already_submitted")
	case errors.Is(err, fill.ErrExpired):
		// time ran out and the auto-submit was rejected: report the
		// session state so the client can show what failed
		state := session.Snapshot()
		render.Status(r, http.StatusGone)
		render.JSON(w, r, state)
	default:
		httpx.LogInternalError(w, "submit.session", err)
	}
}

// FillState reports the session's countdown and submit outcome.
func FillState(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}
		user, ok := currentUser(r)
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "fill.state.claims")
			return
		}

		session, ok := app.Sessions.Get(formId, user.ID)
		if !ok {
			httpx.LogNotFound(w, "fill.state", formId)
			return
		}

		render.JSON(w, r, session.Snapshot())
	}
}

// CancelFill abandons the session; nothing is persisted.
func CancelFill(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}
		user, ok := currentUser(r)
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "fill.cancel.claims")
			return
		}

		app.Sessions.Drop(formId, user.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func fillStateError(w http.ResponseWriter, code string, err error) {
	switch {
	case errors.Is(err, fill.ErrSubmitted):
		httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, code+".submitted")
	case errors.Is(err, fill.ErrExpired):
		httpx.LogStatus(w, http.StatusGone, log.DebugLevel, code+".expired")
	default:
		httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, code+".not_filling")
	}
}
