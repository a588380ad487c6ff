package app

import (
	"database/sql"

	"github.com/go-chi/oauth"
	"github.com/okelemen/formfill/config"
	"github.com/okelemen/formfill/fill"
)

// App bundles the shared dependencies handler constructors close over.
type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config
	Sessions *fill.Manager
}
