package domain

import "time"

// SessionState est un état à deux valeurs, recalculé à chaque requête.
// Jamais persisté : un booléen "logged in" stocké finit toujours par mentir.
type SessionState string

const (
	Authenticated   SessionState = "authenticated"
	Unauthenticated SessionState = "unauthenticated"
)

// SessionClaims est le contenu métier extrait du payload d'un token.
// Le sujet est l'email (clé d'identité du système), l'expiration vient
// de la claim "exp" (secondes epoch, UTC).
type SessionClaims struct {
	Subject   string
	ExpiresAt time.Time
}
