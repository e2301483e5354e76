package company

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "trustbridge/pkg/domain"
	"trustbridge/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const companyColumns = `id, name, industry, COALESCE(contact_email, ''), created_at`

func (s *PostgresStore) Create(ctx context.Context, c *Company) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (id, name, industry, contact_email, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		uuid.UUID(c.ID), c.Name, c.Industry, c.ContactEmail, c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("company name must be unique: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create company: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, companyID id.CompanyID) (*Company, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, uuid.UUID(companyID))
	return s.one(row, "find company by id")
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*Company, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE lower(name) = lower($1)`, name)
	return s.one(row, "find company by name")
}

func (s *PostgresStore) List(ctx context.Context) ([]*Company, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	companies := []*Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (s *PostgresStore) one(row *sql.Row, op string) (*Company, error) {
	c, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("company not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompany(row scanner) (*Company, error) {
	var (
		companyID uuid.UUID
		c         Company
	)
	if err := row.Scan(&companyID, &c.Name, &c.Industry, &c.ContactEmail, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ID = id.CompanyID(companyID)
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}
