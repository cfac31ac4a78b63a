package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelTable is created by the last step; its presence means the schema is current.
const sentinelTable = "public.thesis_events"

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_institutions",
		SQL: `CREATE TABLE IF NOT EXISTS institutions (
  id          TEXT        PRIMARY KEY,
  name        TEXT        NOT NULL,
  country     TEXT        NOT NULL DEFAULT '',
  domain      TEXT        NOT NULL DEFAULT '',
  is_member   BOOLEAN     NOT NULL DEFAULT false,
  can_verify  BOOLEAN     NOT NULL DEFAULT false,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_theses",
		SQL: `CREATE TABLE IF NOT EXISTS theses (
  id               UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  title            TEXT        NOT NULL,
  summary          TEXT        NOT NULL DEFAULT '',
  keywords         JSONB       NOT NULL DEFAULT '[]',
  authors          JSONB       NOT NULL DEFAULT '[]',
  language         TEXT        NOT NULL DEFAULT '',
  degree_type      TEXT        NOT NULL DEFAULT '',
  department       TEXT        NOT NULL DEFAULT '',
  field            TEXT        NOT NULL DEFAULT '',
  doi              TEXT        NOT NULL DEFAULT '',
  filename         TEXT        NOT NULL,
  content_type     TEXT        NOT NULL,
  size             BIGINT      NOT NULL CHECK (size > 0),
  storage_key      TEXT        NOT NULL,
  digest           TEXT        NOT NULL,
  digest_algorithm TEXT        NOT NULL CHECK (digest_algorithm IN ('sha256', 'sha3-256', 'keccak256')),
  content_id       TEXT        NOT NULL,
  uploaded_by      TEXT        NOT NULL,
  institution_id   TEXT        NOT NULL REFERENCES institutions (id),
  status           TEXT        NOT NULL CHECK (status IN ('pending', 'institution_verified', 'certified', 'rejected')),
  tx_hash          TEXT        NOT NULL DEFAULT '',
  chain_id         BIGINT      NOT NULL DEFAULT 0,
  block_number     BIGINT      NOT NULL DEFAULT 0,
  pending_tx_hash  TEXT        NOT NULL DEFAULT '',
  verified_by      TEXT        NOT NULL DEFAULT '',
  verified_at      TIMESTAMPTZ,
  certified_at     TIMESTAMPTZ,
  rejected_by      TEXT        NOT NULL DEFAULT '',
  rejected_at      TIMESTAMPTZ,
  reject_reason    TEXT        NOT NULL DEFAULT '',
  revoked_by       TEXT        NOT NULL DEFAULT '',
  revoked_at       TIMESTAMPTZ,
  revoke_reason    TEXT        NOT NULL DEFAULT '',
  deleted_at       TIMESTAMPTZ,
  version          BIGINT      NOT NULL DEFAULT 1,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_unique_index_theses_digest",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS ux_theses_digest ON theses (digest) WHERE deleted_at IS NULL;`,
	},
	{
		Name: "create_unique_index_theses_tx_hash",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS ux_theses_tx_hash ON theses (tx_hash) WHERE tx_hash <> '';`,
	},
	{
		Name: "create_index_theses_status_institution",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_theses_status_institution ON theses (status, institution_id);`,
	},
	{
		Name: "create_index_theses_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_theses_created_at ON theses (created_at);`,
	},
	{
		Name: "create_table_thesis_events",
		SQL: `CREATE TABLE IF NOT EXISTS thesis_events (
  id          BIGSERIAL   PRIMARY KEY,
  thesis_id   UUID        NOT NULL REFERENCES theses (id),
  from_status TEXT        NOT NULL DEFAULT '',
  to_status   TEXT        NOT NULL,
  actor_id    TEXT        NOT NULL,
  reason      TEXT        NOT NULL DEFAULT '',
  tx_hash     TEXT        NOT NULL DEFAULT '',
  at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_thesis_events_thesis_id ON thesis_events (thesis_id);`,
	},
}

// EnsureMigrated checks whether the schema sentinel table exists and runs every
// step when it does not. Steps are idempotent, so a run interrupted halfway is
// completed by the next start.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *zap.Logger, dbHost string) error {
	start := time.Now()
	log := logger.With(zap.String("component", "database"), zap.String("db_host", dbHost))

	log.Info("db_migration_check", zap.String("status", "starting"))

	var exists bool
	err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", sentinelTable).Scan(&exists)
	if err != nil {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.Error(err),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			zap.String("status", "success"),
			zap.String("reason", "schema already exists"),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", zap.String("status", "in_progress"), zap.Int("steps", len(steps)))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("status", "error"),
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			zap.String("status", "success"),
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
