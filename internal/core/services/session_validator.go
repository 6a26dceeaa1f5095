package services

import (
	"time"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/ports"
)

// SessionValidator implémente ports.SessionEvaluator.
// Pur : aucun état, aucun effet de bord. Le decoder injecté décide si la
// signature est vérifiée ou non ; la comparaison d'expiration reste ici.
type SessionValidator struct {
	decoder ports.ClaimsDecoder
}

func NewSessionValidator(decoder ports.ClaimsDecoder) *SessionValidator {
	return &SessionValidator{decoder: decoder}
}

// Evaluate retourne Authenticated ssi le token se décode proprement et que
// now < exp, en secondes epoch. Le cas now == exp est expiré (strictement <).
// Toute malformation (segments, base64, JSON, exp absent/non numérique)
// donne Unauthenticated, jamais une erreur.
func (v *SessionValidator) Evaluate(token string, now time.Time) domain.SessionState {
	claims, err := v.decoder.DecodeClaims(token)
	if err != nil || claims == nil {
		return domain.Unauthenticated
	}
	if now.Unix() < claims.ExpiresAt.Unix() {
		return domain.Authenticated
	}
	return domain.Unauthenticated
}
