package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
)

// --- INPUTS (Command Pattern) ---
// Des structs plutôt que des listes d'arguments : on pourra ajouter des
// champs optionnels plus tard sans casser la signature.

type FileReportCmd struct {
	ReporterEmail string
	Category      domain.ReportCategory
	TargetID      string // id de post, ou email pour un signalement d'utilisateur
	Reason        string
}

type ListQuery struct {
	Of     string // le profil dont on liste les relations
	Viewer string // accepté mais ne filtre rien : les profils sont publics.
	// Réservé pour une future couche ACL.
}

// --- PORTS PRIMAIRES (Driving) ---
// L'API que l'hexagone expose à la couche de présentation (gRPC, events, CLI).

// SessionEvaluator recalcule l'état de session à chaque appel.
// Fonction pure de (token, now) : rien n'est mis en cache.
type SessionEvaluator interface {
	Evaluate(token string, now time.Time) domain.SessionState
}

// AuthGate est le checkpoint obligatoire devant toute opération mutante.
// Sur succès il retourne le profil lié au token ; sur échec, ErrUnauthenticated
// et l'appelant ne doit PAS continuer vers le graphe ou la modération.
type AuthGate interface {
	Authorize(ctx context.Context, token string, now time.Time) (*domain.ProfileSummary, error)
}

// FollowService maintient le graphe de follow dirigé.
type FollowService interface {
	// ToggleFollow crée l'arête si elle n'existe pas (Followed), la supprime
	// sinon (Unfollowed). Idempotent en effet : deux appels ramènent le graphe
	// à son état initial.
	ToggleFollow(ctx context.Context, followerEmail, followeeEmail string) (domain.FollowOutcome, error)

	// Listings en ordre de création d'arête (déterministe, paginable).
	ListFollowers(ctx context.Context, q ListQuery) ([]*domain.ProfileSummary, error)
	ListFollowees(ctx context.Context, q ListQuery) ([]*domain.ProfileSummary, error)

	// CheckRelation est utilisé pour l'UI (page profil).
	CheckRelation(ctx context.Context, actorEmail, targetEmail string) (*domain.RelationStatus, error)
}

// ModerationService agrège les signalements et franchit les seuils.
type ModerationService interface {
	// FileReport déduplique par (reporter, cible) : re-signaler est un no-op
	// qui retourne le verdict courant.
	FileReport(ctx context.Context, cmd FileReportCmd) (domain.Verdict, error)

	// GetVerdict est une lecture pure du verdict courant.
	GetVerdict(ctx context.Context, target domain.ReportTarget) (domain.Verdict, error)

	// ResetTarget est le hook d'override modérateur : résout les signalements
	// actifs et réarme les notifications de franchissement.
	ResetTarget(ctx context.Context, target domain.ReportTarget) error
}
