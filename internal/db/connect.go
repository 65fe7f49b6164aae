package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:quizdocs.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/quizdocs?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// one writer; the batch insert transaction must not interleave with another
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS quiz_uploads (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL,
  level TEXT NOT NULL CHECK(level IN ('Easy','Medium','Hard')),
  file_name TEXT NOT NULL,
  file_path TEXT NOT NULL,
  file_size INTEGER NOT NULL DEFAULT 0,
  file_type TEXT NOT NULL DEFAULT '',
  uploaded_by TEXT NOT NULL DEFAULT '',
  uploaded_at INTEGER NOT NULL,
  processed_at INTEGER,
  status TEXT NOT NULL DEFAULT 'uploaded' CHECK(status IN ('uploaded','processing','processed','error'))
);

CREATE TABLE IF NOT EXISTS quiz_questions (
  id TEXT PRIMARY KEY,
  quiz_upload_id TEXT NOT NULL REFERENCES quiz_uploads(id) ON DELETE CASCADE,
  course_id TEXT NOT NULL,
  level TEXT NOT NULL,
  question_number INTEGER NOT NULL,
  question_text TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_index INTEGER,
  correct_text TEXT,
  explanation TEXT NOT NULL DEFAULT '',
  question_type TEXT NOT NULL DEFAULT 'mcq' CHECK(question_type IN ('mcq','short_answer','image_based')),
  image_url TEXT,
  tables_json TEXT,
  math_expressions_json TEXT,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quiz_uploads_course_level ON quiz_uploads(course_id, level);
CREATE INDEX IF NOT EXISTS idx_quiz_questions_course_level ON quiz_questions(course_id, level);
CREATE INDEX IF NOT EXISTS idx_quiz_questions_upload_id ON quiz_questions(quiz_upload_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS quiz_uploads (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL,
  level TEXT NOT NULL CHECK(level IN ('Easy','Medium','Hard')),
  file_name TEXT NOT NULL,
  file_path TEXT NOT NULL,
  file_size BIGINT NOT NULL DEFAULT 0,
  file_type TEXT NOT NULL DEFAULT '',
  uploaded_by TEXT NOT NULL DEFAULT '',
  uploaded_at BIGINT NOT NULL,
  processed_at BIGINT,
  status TEXT NOT NULL DEFAULT 'uploaded' CHECK(status IN ('uploaded','processing','processed','error'))
);

CREATE TABLE IF NOT EXISTS quiz_questions (
  id TEXT PRIMARY KEY,
  quiz_upload_id TEXT NOT NULL REFERENCES quiz_uploads(id) ON DELETE CASCADE,
  course_id TEXT NOT NULL,
  level TEXT NOT NULL,
  question_number INTEGER NOT NULL,
  question_text TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_index INTEGER,
  correct_text TEXT,
  explanation TEXT NOT NULL DEFAULT '',
  question_type TEXT NOT NULL DEFAULT 'mcq' CHECK(question_type IN ('mcq','short_answer','image_based')),
  image_url TEXT,
  tables_json TEXT,
  math_expressions_json TEXT,
  created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quiz_uploads_course_level ON quiz_uploads(course_id, level);
CREATE INDEX IF NOT EXISTS idx_quiz_questions_course_level ON quiz_questions(course_id, level);
CREATE INDEX IF NOT EXISTS idx_quiz_questions_upload_id ON quiz_questions(quiz_upload_id);
`
