package company

import (
	"context"

	id "trustbridge/pkg/domain"
)

// Store holds the company directory.
// Error Contract: Find methods return sentinel.ErrNotFound; Create returns
// sentinel.ErrConflict when the name is taken, ignoring case.
type Store interface {
	Create(ctx context.Context, c *Company) error
	FindByID(ctx context.Context, companyID id.CompanyID) (*Company, error)
	FindByName(ctx context.Context, name string) (*Company, error)
	List(ctx context.Context) ([]*Company, error)
}
