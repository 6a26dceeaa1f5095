package domain

import "time"

// Relation représente un lien dirigé dans le graphe (User -> Follows -> User).
// Au plus une arête par paire ordonnée (follower, followee).
type Relation struct {
	FollowerEmail string // Celui qui suit
	FolloweeEmail string // Celui qui est suivi
	CreatedAt     time.Time
}

// FollowOutcome est le résultat d'un toggle : une seule opération,
// deux issues possibles selon l'état courant de l'arête.
type FollowOutcome string

const (
	Followed   FollowOutcome = "followed"
	Unfollowed FollowOutcome = "unfollowed"
)

// RelationStatus est utilisé pour l'UI (page profil d'un autre utilisateur).
type RelationStatus struct {
	IsFollowing  bool // Actor suit Target
	IsFollowedBy bool // Target suit Actor
}
