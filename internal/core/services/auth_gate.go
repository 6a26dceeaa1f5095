package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/ports"
)

// AuthGate compose le SessionValidator avec l'annuaire d'identités.
// C'est LE checkpoint : toute opération mutante du graphe ou de la
// modération doit passer par Authorize dans la même requête.
type AuthGate struct {
	validator *SessionValidator
	decoder   ports.ClaimsDecoder
	directory ports.IdentityDirectory
}

func NewAuthGate(validator *SessionValidator, decoder ports.ClaimsDecoder, directory ports.IdentityDirectory) *AuthGate {
	return &AuthGate{
		validator: validator,
		decoder:   decoder,
		directory: directory,
	}
}

// Authorize retourne le profil lié au token, ou ErrUnauthenticated.
// L'état "pas connecté" est toujours explicite côté client, jamais un
// échec générique.
func (g *AuthGate) Authorize(ctx context.Context, token string, now time.Time) (*domain.ProfileSummary, error) {
	if g.validator.Evaluate(token, now) != domain.Authenticated {
		return nil, domain.ErrUnauthenticated
	}

	// Le token vient de passer Evaluate, le décodage ne peut plus échouer.
	claims, err := g.decoder.DecodeClaims(token)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}

	profile, err := g.directory.Resolve(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Session valide mais identité disparue : re-login obligatoire.
			return nil, fmt.Errorf("%w: unknown subject", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: identity directory: %v", domain.ErrUnavailable, err)
	}

	return profile, nil
}
