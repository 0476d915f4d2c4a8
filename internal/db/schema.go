package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/brensch/failurelogs/internal/config"

	_ "github.com/marcboeker/go-duckdb" // Driver
)

const recordSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS %[1]s_id_seq;`

const recordTableSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id                      BIGINT PRIMARY KEY DEFAULT nextval('%[1]s_id_seq'),
    file_path               VARCHAR NOT NULL,      -- relative to the expanded archive root
    step_name               VARCHAR NOT NULL,
    step_family             VARCHAR,
    report_date             DATE NOT NULL,
    report_id               VARCHAR,
    worker_process_group_id VARCHAR,
    hostname                VARCHAR,
    executor_kerberos_id    VARCHAR,
    requesting_kerberos_id  VARCHAR,
    header_match            VARCHAR NOT NULL,
    content                 VARCHAR,               -- set when content_encoding is identity
    content_encoded         BLOB,                  -- gzip or zstd bytes otherwise
    content_mode            VARCHAR NOT NULL,
    content_encoding        VARCHAR NOT NULL,
    attachment_id           VARCHAR NOT NULL,
    parent_record_id        VARCHAR,
    work_item               VARCHAR,
    work_id                 BIGINT,
    case_number             BIGINT,
    datacenter              VARCHAR,
    run_id                  VARCHAR,
    ingested_at             TIMESTAMP NOT NULL,
    UNIQUE (attachment_id, file_path)
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_attachment ON %[1]s (attachment_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_step_date ON %[1]s (step_family, report_date);
`

const eventSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS %[1]s_id_seq;`

const eventTableSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    log_id          BIGINT PRIMARY KEY DEFAULT nextval('%[1]s_id_seq'),
    attachment_id   VARCHAR NOT NULL,
    attachment_name VARCHAR,
    event           VARCHAR NOT NULL,
    event_timestamp TIMESTAMP NOT NULL,
    run_id          VARCHAR,
    message         VARCHAR,
    duration_ms     BIGINT
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_attachment ON %[1]s (attachment_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_event_time ON %[1]s (event, event_timestamp);
`

// InitializeSchema creates the sequences, tables and indexes named by cfg.
// Table names are validated by config.Config.Validate before reaching here.
func InitializeSchema(ctx context.Context, db *sql.DB, cfg config.Config) error {
	steps := []struct {
		name string
		sql  string
	}{
		{"record sequence", fmt.Sprintf(recordSequenceSQL, cfg.TableName)},
		{"record table", fmt.Sprintf(recordTableSQL, cfg.TableName)},
		{"event sequence", fmt.Sprintf(eventSequenceSQL, cfg.EventTableName)},
		{"event table", fmt.Sprintf(eventTableSQL, cfg.EventTableName)},
	}
	for _, s := range steps {
		_, err := db.ExecContext(ctx, s.sql)
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return fmt.Errorf("failed to execute %s setup: %w", s.name, err)
		}
	}
	return nil
}
