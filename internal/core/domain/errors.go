package domain

import (
	"errors"
	"fmt"
)

// --- TAXONOMIE D'ERREURS ---
// Quatre familles, vérifiables avec errors.Is depuis les adapters.
// Les erreurs plus précises ci-dessous wrappent leur famille.
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNotFound         = errors.New("not found")
	ErrUnavailable      = errors.New("dependency unavailable")
)

var (
	// ErrSelfFollow : on ne peut pas se suivre soi-même.
	ErrSelfFollow = fmt.Errorf("%w: cannot follow yourself", ErrInvalidOperation)

	// ErrSelfReport : on ne peut pas se signaler soi-même.
	ErrSelfReport = fmt.Errorf("%w: cannot report yourself", ErrInvalidOperation)

	// ErrUserNotFound : l'identité ne résout vers aucun profil connu.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
)
