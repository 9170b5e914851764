package dbx

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// OpenWithRetry opens driver/dsn and pings it with exponential backoff until
// it answers, maxElapsed passes or ctx is done. notify is called before every
// retry and may be nil.
func OpenWithRetry(ctx context.Context, driver, dsn string, maxElapsed time.Duration, notify func(error, time.Duration)) (*sql.DB, error) {
	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed

	ping := func() error {
		return db.PingContext(ctx)
	}
	if notify == nil {
		notify = func(error, time.Duration) {}
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
