package action

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "trustbridge/pkg/domain"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

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

func (s *PostgresStore) Save(ctx context.Context, action *Action) error {
	details := action.Details
	if details == nil {
		details = map[string]any{}
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	var companyID any
	if action.CompanyID != nil {
		companyID = uuid.UUID(*action.CompanyID)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actions (id, actor_id, actor_role, type, details, company_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(action.ID), uuid.UUID(action.ActorID), action.ActorRole, action.Type,
		string(encoded), companyID, action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save action: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_role, type, details, company_id, created_at
		FROM actions
		ORDER BY created_at DESC, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	actions := []*Action{}
	for rows.Next() {
		var (
			actionID  uuid.UUID
			actorID   uuid.UUID
			companyID uuid.NullUUID
			details   []byte
			createdAt time.Time
			a         Action
		)
		if err := rows.Scan(&actionID, &actorID, &a.ActorRole, &a.Type, &details, &companyID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.ID = id.ActionID(actionID)
		a.ActorID = id.UserID(actorID)
		a.CreatedAt = createdAt.UTC()
		if companyID.Valid {
			company := id.CompanyID(companyID.UUID)
			a.CompanyID = &company
		}
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
		actions = append(actions, &a)
	}
	return actions, rows.Err()
}
