package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trustbridge/internal/compliance"
	id "trustbridge/pkg/domain"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PostgresStore persists entries in ledger_entries. It only ever INSERTs.
type PostgresStore struct {
	db DBTX
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) Append(ctx context.Context, entry *Entry) error {
	var report any
	if entry.AIReport != nil {
		encoded, err := json.Marshal(entry.AIReport)
		if err != nil {
			return fmt.Errorf("encode ai report: %w", err)
		}
		report = string(encoded)
	}
	raw := entry.Raw
	if raw == nil {
		raw = map[string]any{}
	}
	encodedRaw, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode raw: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, action_ref, actor, actor_role, action_type, company_id, ai_report, raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(entry.ID), nullUUID(entry.ActionRef), entry.Actor, entry.ActorRole, entry.ActionType,
		nullUUID(entry.CompanyID), report, string(encodedRaw), entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

const entryColumns = `id, action_ref, actor, actor_role, action_type, company_id, ai_report, raw, created_at`

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Entry, error) {
	return s.query(ctx, `SELECT `+entryColumns+` FROM ledger_entries ORDER BY seq DESC LIMIT $1`, limit)
}

func (s *PostgresStore) ListByActor(ctx context.Context, actor string, limit int) ([]*Entry, error) {
	return s.query(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE actor = $1 ORDER BY seq DESC LIMIT $2`, actor, limit)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var (
			entryID   uuid.UUID
			actionRef uuid.NullUUID
			companyID uuid.NullUUID
			report    []byte
			raw       []byte
			createdAt time.Time
			entry     Entry
		)
		if err := rows.Scan(&entryID, &actionRef, &entry.Actor, &entry.ActorRole, &entry.ActionType,
			&companyID, &report, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.ID = id.LedgerEntryID(entryID)
		entry.Timestamp = createdAt.UTC()
		if actionRef.Valid {
			ref := id.ActionID(actionRef.UUID)
			entry.ActionRef = &ref
		}
		if companyID.Valid {
			company := id.CompanyID(companyID.UUID)
			entry.CompanyID = &company
		}
		if len(report) > 0 {
			var verdict compliance.Verdict
			if err := json.Unmarshal(report, &verdict); err != nil {
				return nil, fmt.Errorf("decode ai report: %w", err)
			}
			entry.AIReport = &verdict
		}
		if err := json.Unmarshal(raw, &entry.Raw); err != nil {
			return nil, fmt.Errorf("decode raw: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func nullUUID[T ~[16]byte](v *T) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}
