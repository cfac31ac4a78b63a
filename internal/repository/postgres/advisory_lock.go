package postgres

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"thesiscert/internal/repository"
)

// AdvisoryLocker is a repository.Locker backed by PostgreSQL session advisory
// locks, so serialization holds across service instances sharing one database.
// Each held lock pins one pooled connection until released.
type AdvisoryLocker struct {
	db *sql.DB
}

var _ repository.Locker = (*AdvisoryLocker)(nil)

func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, key); err != nil {
		conn.Close()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be done; the lock must still be released.
			uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = conn.ExecContext(uctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key)
			conn.Close()
		})
	}, nil
}
