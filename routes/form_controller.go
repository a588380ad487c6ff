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
	"github.com/okelemen/formfill/validate"
)

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := model.Form{}
		err := render.DecodeJSON(r.Body, &form)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if err := validate.Form(form); err != nil {
			var fieldErrs model.FieldErrors
			errors.As(err, &fieldErrs)
			httpx.RenderFieldErrors(w, r, "create_form.validate", fieldErrs)
			return
		}

		fieldsDoc, err := model.EncodeFields(trimOptions(form.Fields))
		if err != nil {
			httpx.LogInternalError(w, "db.insert_form.encode_fields", err)
			return
		}

		var formId int
		err = app.QueryRowContext(r.Context(), `
			INSERT INTO form (name, time_limit, fields) VALUES (?, ?, ?)
			RETURNING id`,
			form.Name,
			form.TimeLimit,
			fieldsDoc,
		).Scan(&formId)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_form", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": formId,
		})
	}
}

// trimOptions normalizes radio options the way the builder does: trimmed,
// empty entries dropped, capped at the maximum.
func trimOptions(fields []model.Field) []model.Field {
	out := make([]model.Field, len(fields))
	for i, f := range fields {
		if f.Type == model.FieldRadio {
			options := make([]string, 0, len(f.Options))
			for _, opt := range f.Options {
				if opt != "" && len(options) < model.MaxRadioOptions {
					options = append(options, opt)
				}
			}
			f.Options = options
		}
		out[i] = f
	}
	return out
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
			SELECT f.id, f.version, f.name, f.time_limit
			FROM form f`)
		if err != nil {
			httpx.LogInternalError(w, "db.get_forms", err)
			return
		}
		defer rows.Close()

		forms := []model.Summary{}
		for rows.Next() {
			f := model.Summary{}
			err = rows.Scan(&f.ID, &f.Version, &f.Name, &f.TimeLimit)
			if err != nil {
				httpx.LogInternalError(w, "db.get_forms.scan", err)
				return
			}

			forms = append(forms, f)
		}

		render.JSON(w, r, forms)
	}
}

// loadForm fetches one form with its decoded field schemas.
func loadForm(app app.App, r *http.Request, formId int) (form model.Form, err error) {
	var fieldsDoc string
	err = app.QueryRowContext(r.Context(), `
		SELECT f.id, f.version, f.name, f.time_limit, f.fields
		FROM form f
		WHERE f.id = ?`,
		formId,
	).Scan(&form.ID, &form.Version, &form.Name, &form.TimeLimit, &fieldsDoc)
	if err != nil {
		return
	}

	form.Fields, err = model.DecodeFields(fieldsDoc)
	return
}

func GetFormById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		form, err := loadForm(app, r, formId)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, "get_form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_form", err)
			return
		}

		render.JSON(w, r, form)
	}
}

func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		form := model.Form{}
		err = render.DecodeJSON(r.Body, &form)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if err := validate.Form(form); err != nil {
			var fieldErrs model.FieldErrors
			errors.As(err, &fieldErrs)
			httpx.RenderFieldErrors(w, r, "update_form.validate", fieldErrs)
			return
		}

		fieldsDoc, err := model.EncodeFields(trimOptions(form.Fields))
		if err != nil {
			httpx.LogInternalError(w, "db.update_form.encode_fields", err)
			return
		}

		res, err := app.ExecContext(r.Context(), `
			UPDATE form
			SET
				name = ?,
				time_limit = ?,
				fields = ?,
				version = version+1
			WHERE	id = ?
				AND version = ?`,
			form.Name,
			form.TimeLimit,
			fieldsDoc,
			formId,
			form.Version,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.update_form", err)
			return
		}
		// optimistic lock
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.update_form.verify", err)
			return
		}
		if n < 1 {
			var exists bool
			app.QueryRowContext(r.Context(), "SELECT 1 FROM form WHERE id = ?", formId).Scan(&exists)
			if !exists {
				httpx.LogNotFound(w, "update_form", formId)
				return
			}
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "db.update_form.verify.conflict")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		// submissions go with the form, through the FK cascade
		res, err := app.ExecContext(r.Context(), `
			DELETE FROM form WHERE id = ?`,
			formId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.delete_form", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.delete_form.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, "delete_form", formId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
