// Package testutil sets up the stores other packages test against.
package testutil

import (
	"database/sql"
	"testing"
	"time"

	"mtreport-backend/internal/chrono"
	"mtreport-backend/internal/localstore"
	"mtreport-backend/internal/telemetry"

	_ "modernc.org/sqlite"
)

// Now is the clock of every store opened by this package.
var Now = time.Date(2025, 2, 1, 8, 0, 0, 0, chrono.Shanghai())

// LocalStore opens a migrated local store on an in-memory database that is
// closed with the test.
func LocalStore(t testing.TB) (*localstore.Store, *telemetry.RecorderAPI) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a new database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	tel := telemetry.NewRecorderAPI()
	store := localstore.NewStore(db, chrono.FixedTime{At: Now}, tel)
	if err := store.Migrate(t.Context()); err != nil {
		t.Fatal(err)
	}
	return store, tel
}
