package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
)

// UserRepository reads the user directory.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// ListWithAnyRole returns users holding at least one of roles, each with its full role set.
func (r *UserRepository) ListWithAnyRole(ctx context.Context, roles ...models.UserRole) ([]models.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	const query = `SELECT u.id, u.full_name, array_agg(DISTINCT ur.role ORDER BY ur.role) AS roles
FROM users u
JOIN user_roles ur ON ur.user_id = u.id
GROUP BY u.id, u.full_name
HAVING bool_or(ur.role = ANY($1))
ORDER BY u.id`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}
