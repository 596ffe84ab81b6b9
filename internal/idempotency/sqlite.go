package idempotency

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable RecordStore implementation.
type SQLiteStore struct {
	db *sql.DB
}

var _ RecordStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath and initializes
// the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS idempotency_records (
			tenant_id TEXT NOT NULL,
			resource TEXT NOT NULL,
			idem_key TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			response_body BLOB NOT NULL,
			origin_request_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant_id, resource, idem_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_idempotency_tenant ON idempotency_records(tenant_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, tenant, resource, key string) (*Record, error) {
	rec := &Record{TenantID: tenant, Resource: resource, Key: key}
	var origin sql.NullString
	err := s.db.QueryRowContext(ctx, `
	SELECT status_code, response_body, origin_request_id
	FROM idempotency_records
	WHERE tenant_id = ? AND resource = ? AND idem_key = ?`,
		tenant, resource, key,
	).Scan(&rec.StatusCode, &rec.Body, &origin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.OriginRequestID = origin.String
	return rec, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO idempotency_records (tenant_id, resource, idem_key, status_code, response_body, origin_request_id)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(tenant_id, resource, idem_key) DO UPDATE SET
		status_code=excluded.status_code,
		response_body=excluded.response_body,
		origin_request_id=excluded.origin_request_id,
		updated_at=CURRENT_TIMESTAMP;`,
		rec.TenantID, rec.Resource, rec.Key, rec.StatusCode, rec.Body, rec.OriginRequestID,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
