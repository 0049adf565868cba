package localstore

import (
	"context"
	"database/sql"
)

// makeTx is a function that creates a db transaction
type makeTx = func(ctx context.Context) (tx *queries, discard, commit func() error, err error)

func newMakeTx(db *sql.DB) makeTx {
	return func(ctx context.Context) (tx *queries, discard, commit func() error, err error) {
		sqltx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		return newQueries(sqltx),
			func() error {
				return sqltx.Rollback()
			},
			func() error {
				return sqltx.Commit()
			},
			nil
	}
}
