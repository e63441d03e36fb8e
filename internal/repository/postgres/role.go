package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/identity-service/internal/domain"
	"github.com/utafrali/identity-service/pkg/database"
	apperrors "github.com/utafrali/identity-service/pkg/errors"
)

// RoleRepository implements repository.RoleRepository using PostgreSQL.
type RoleRepository struct {
	db database.DBTX
}

// NewRoleRepository creates a new PostgreSQL-backed role repository.
func NewRoleRepository(db database.DBTX) *RoleRepository {
	return &RoleRepository{db: db}
}

// EnsureSeed inserts the given roles if they are missing. Concurrent seeding
// is safe: duplicates are skipped by the unique constraint.
func (r *RoleRepository) EnsureSeed(ctx context.Context, names []string) error {
	db := database.Executor(ctx, r.db)
	for _, name := range names {
		_, err := db.Exec(ctx,
			`INSERT INTO roles (id, name, created_at) VALUES ($1, $2, NOW()) ON CONFLICT (name) DO NOTHING`,
			uuid.New().String(), name,
		)
		if err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}

// GetByName retrieves a role by its exact name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	err := database.Executor(ctx, r.db).
		QueryRow(ctx, `SELECT id, name, created_at FROM roles WHERE name = $1`, name).
		Scan(&role.ID, &role.Name, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("role", name)
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}
	return &role, nil
}

// Assign grants the role to the user. Assigning an already-held role is a no-op.
func (r *RoleRepository) Assign(ctx context.Context, userID, roleID string) error {
	_, err := database.Executor(ctx, r.db).Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// Remove revokes the role from the user.
func (r *RoleRepository) Remove(ctx context.Context, userID, roleID string) error {
	_, err := database.Executor(ctx, r.db).Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`,
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	return nil
}

// NamesByUserID returns the role names held by the user, sorted.
func (r *RoleRepository) NamesByUserID(ctx context.Context, userID string) ([]string, error) {
	rows, err := database.Executor(ctx, r.db).Query(ctx, `
		SELECT ro.name
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY ro.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role names: %w", err)
	}

	return names, nil
}

// NamesByUserIDs returns role names grouped by user for a batch of users.
func (r *RoleRepository) NamesByUserIDs(ctx context.Context, userIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	rows, err := database.Executor(ctx, r.db).Query(ctx, `
		SELECT ur.user_id, ro.name
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = ANY($1)
		ORDER BY ro.name`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("query roles for users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, name string
		if err := rows.Scan(&userID, &name); err != nil {
			return nil, fmt.Errorf("scan user role row: %w", err)
		}
		result[userID] = append(result[userID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user role rows: %w", err)
	}

	return result, nil
}
