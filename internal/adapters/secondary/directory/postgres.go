package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
)

// PostgresDirectory résout les identités contre la table users (possédée
// par l'identity-service : lecture seule ici).
type PostgresDirectory struct {
	db *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{db: pool}
}

func (d *PostgresDirectory) Exists(ctx context.Context, email string) (bool, error) {
	q := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND is_active)`

	var exists bool
	if err := d.db.QueryRow(ctx, q, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db: exists: %w", err)
	}
	return exists, nil
}

func (d *PostgresDirectory) Resolve(ctx context.Context, email string) (*domain.ProfileSummary, error) {
	// COALESCE : name/introduce/image_url sont nullables côté identity.
	q := `
		SELECT email, COALESCE(name, ''), COALESCE(introduce, ''), COALESCE(image_url, '')
		FROM users
		WHERE email = $1 AND is_active
	`

	var p domain.ProfileSummary
	err := d.db.QueryRow(ctx, q, email).Scan(&p.Email, &p.Name, &p.Introduce, &p.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound // Traduction technique -> Domaine
		}
		return nil, fmt.Errorf("db: resolve: %w", err)
	}
	return &p, nil
}
