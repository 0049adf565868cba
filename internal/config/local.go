package config

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type LocalConfig struct {
	// File is the path of the embedded sqlite database.
	File string `json:"file"`
	// Url points at a libsql server, when set it takes priority over File.
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

// OpenDB opens the local record database, creating the file and its parent
// directory when they do not exist yet.
func (c LocalConfig) OpenDB() (*sql.DB, error) {
	if c.Url != "" {
		dsn := c.Url
		if c.AuthToken != "" {
			u, err := url.Parse(c.Url)
			if err != nil {
				return nil, fmt.Errorf("parse libsql url: %w", err)
			}
			q := u.Query()
			q.Set("authToken", c.AuthToken)
			u.RawQuery = q.Encode()
			dsn = u.String()
		}
		db, err := sql.Open("libsql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open libsql: %w", err)
		}
		return db, nil
	}

	if c.File == "" {
		return nil, fmt.Errorf("a local database path was not specified")
	}
	if c.File != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.File), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", c.File)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// sqlite has a single writer, more than one connection only produces SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}
