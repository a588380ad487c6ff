package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/okelemen/formfill/config"
	"golang.org/x/crypto/bcrypt"
)

func Open(cfg config.Config) (db *sql.DB, err error) {
	// foreign_keys must ride the DSN so every pooled connection gets it;
	// form deletion relies on the submission cascade
	dsn := cfg.DBUrl
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=on"
	} else {
		dsn += "?_foreign_keys=on"
	}

	db, err = sql.Open("sqlite3", dsn)
	if err != nil {
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	return
}

// EnsureAdmin creates or refreshes the administrator account. Called at
// boot when -admin-password is set, so no credentials live in migrations.
func EnsureAdmin(db *sql.DB, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO user (username, password_hash, name, email, roles)
		VALUES (?, ?, 'Administrator', '', 'admin')
		ON CONFLICT (username) DO UPDATE SET password_hash = excluded.password_hash`,
		username,
		string(hash),
	)
	return err
}
