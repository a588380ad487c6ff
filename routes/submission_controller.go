package routes

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/okelemen/formfill/app"
	"github.com/okelemen/formfill/httpx"
	"github.com/okelemen/formfill/log"
	"github.com/okelemen/formfill/model"
)

// ListSubmissions returns who submitted and when. Answers are left out of
// the listing; they are fetched per submission on demand.
func ListSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var exists bool
		err = app.QueryRowContext(r.Context(), "SELECT 1 FROM form WHERE id = ?", formId).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, "get_submissions", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_submissions.get_form", err)
			return
		}

		rows, err := app.QueryContext(r.Context(), `
			SELECT s.id, s.user_id, s.user_name, s.user_email, s.created_at
			FROM submission s
			WHERE s.form_id = ?
			ORDER BY s.created_at`,
			formId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.get_submissions", err)
			return
		}
		defer rows.Close()

		submissions := []model.Submission{}
		for rows.Next() {
			s := model.Submission{FormID: formId}
			err = rows.Scan(&s.ID, &s.User.ID, &s.User.Name, &s.User.Email, &s.CreatedAt)
			if err != nil {
				httpx.LogInternalError(w, "db.get_submissions.scan", err)
				return
			}

			submissions = append(submissions, s)
		}

		render.JSON(w, r, map[string]any{
			"submissions": submissions,
		})
	}
}

// GetSubmissionAnswers returns one submission with its full answers. Keys
// are decoded to labels through the current form schema; answers whose
// key no longer matches any field are kept under their raw key rather
// than dropped.
func GetSubmissionAnswers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		submissionId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		s := model.Submission{ID: submissionId}
		var answersDoc string
		err = app.QueryRowContext(r.Context(), `
			SELECT s.form_id, s.user_id, s.user_name, s.user_email, s.answers, s.created_at
			FROM submission s
			WHERE s.id = ?`,
			submissionId,
		).Scan(&s.FormID, &s.User.ID, &s.User.Name, &s.User.Email, &answersDoc, &s.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, "get_answers", submissionId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_answers", err)
			return
		}

		stored, err := model.DecodeAnswers(answersDoc)
		if err != nil {
			httpx.LogInternalError(w, "db.get_answers.parse", err)
			return
		}

		// the form may have been edited or deleted since this was filled
		form, err := loadForm(app, r, s.FormID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			httpx.LogInternalError(w, "db.get_answers.get_form", err)
			return
		}

		s.Answers = make(map[string]any, len(stored))
		for key, value := range stored {
			if f, ok := form.FieldByKey(key); ok {
				s.Answers[f.Label] = value
			} else {
				s.Answers[key] = value
			}
		}

		render.JSON(w, r, s)
	}
}

// DeleteSubmission removes one submission; absence is a 404.
func DeleteSubmission(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		submissionId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		res, err := app.ExecContext(r.Context(), `
			DELETE FROM submission WHERE id = ?`,
			submissionId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.delete_submission", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.delete_submission.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, "delete_submission", submissionId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
