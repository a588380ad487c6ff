package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okelemen/formfill/app"
	"github.com/okelemen/formfill/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))

	root.
		With(middlewares.CookieAuth(app.BearerServer), middlewares.Admin(app.TokenSecret)).
		Mount("/admin", servePrivateFiles("/admin"))
	root.Mount("/", servePublicFiles())

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	// any authenticated user: browse, fill and submit forms
	api.Group(func(r chi.Router) {
		r.Use(middlewares.Authenticated(app.TokenSecret))

		r.Post("/logout", Logout(app))

		r.Get("/forms", ListForms(app))
		r.Get(`/forms/{id:^\d+$}`, GetFormById(app))

		r.Post(`/forms/{id:^\d+$}/fill`, StartFill(app))
		r.Put(`/forms/{id:^\d+$}/fill`, UpdateFill(app))
		r.Get(`/forms/{id:^\d+$}/fill/state`, FillState(app))
		r.Delete(`/forms/{id:^\d+$}/fill`, CancelFill(app))
		r.Post(`/forms/{id:^\d+$}/submit`, SubmitForm(app))
	})

	// administrators: author forms, review and delete answers
	api.Group(func(r chi.Router) {
		r.Use(middlewares.Admin(app.TokenSecret))

		r.Post("/forms", CreateForm(app))
		r.Put(`/forms/{id:^\d+$}`, UpdateForm(app))
		r.Delete(`/forms/{id:^\d+$}`, DeleteForm(app))

		r.Get(`/forms/{id:^\d+$}/answers`, ListSubmissions(app))
		r.Get(`/answers/{id:^\d+$}`, GetSubmissionAnswers(app))
		r.Delete(`/answers/{id:^\d+$}`, DeleteSubmission(app))
	})

	return api
}

func servePublicFiles() http.Handler {
	return http.FileServer(http.Dir("public"))
}

func servePrivateFiles(path string) http.Handler {
	return http.StripPrefix(path, http.FileServer(http.Dir("private")))
}
