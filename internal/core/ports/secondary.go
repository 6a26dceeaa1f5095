package ports

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
)

// --- GRAPHE (Neo4j) ---

// FollowRepository est le port Driven vers le stockage du graphe.
// Le service sérialise les toggles par paire ; le repo n'expose que des
// opérations simples, jamais d'itération-puis-mutation.
type FollowRepository interface {
	// EnsureSchema crée contraintes et index (idempotent).
	EnsureSchema(ctx context.Context) error

	HasRelation(ctx context.Context, followerEmail, followeeEmail string) (bool, error)
	CreateRelation(ctx context.Context, followerEmail, followeeEmail string) error
	DeleteRelation(ctx context.Context, followerEmail, followeeEmail string) error
	GetRelationStatus(ctx context.Context, actorEmail, targetEmail string) (*domain.RelationStatus, error)

	// Listes d'emails en ordre de création d'arête.
	ListFollowerEmails(ctx context.Context, ofEmail string) ([]string, error)
	ListFolloweeEmails(ctx context.Context, ofEmail string) ([]string, error)
}

// --- SIGNALEMENTS (Postgres) ---

// ReportRepository persiste le set de signalements et les marqueurs de
// franchissement de seuil. Tout est idempotent côté SQL (ON CONFLICT),
// la sérialisation par cible reste au service.
type ReportRepository interface {
	// InsertReport retourne false si un signalement actif (reporter, cible)
	// existait déjà (dédupliqué, pas compté deux fois).
	InsertReport(ctx context.Context, report *domain.Report) (bool, error)

	// CountReporters compte les reporters distincts non résolus pour la cible.
	CountReporters(ctx context.Context, target domain.ReportTarget) (int, error)

	// MarkStageCrossed enregistre le franchissement d'un palier et retourne
	// true uniquement pour le premier appelant (exactly-once inter-process).
	MarkStageCrossed(ctx context.Context, target domain.ReportTarget, stage domain.Verdict) (bool, error)

	// ResetTarget résout les signalements actifs et efface les marqueurs.
	ResetTarget(ctx context.Context, target domain.ReportTarget) error
}

// --- ANNUAIRE D'IDENTITÉS ---

// IdentityDirectory résout une clé d'identité (email) vers un profil.
// Collaborateur externe : appel borné, jamais retenté ici.
type IdentityDirectory interface {
	Exists(ctx context.Context, email string) (bool, error)
	Resolve(ctx context.Context, email string) (*domain.ProfileSummary, error)
}

// --- MESSAGERIE (BROKER) ---

// ModerationNotifier prévient le collaborateur d'action de modération
// (masquer le contenu, etc.) quand une cible franchit un palier.
type ModerationNotifier interface {
	PublishTargetFlagged(ctx context.Context, target domain.ReportTarget) error
	PublishTargetRemoved(ctx context.Context, target domain.ReportTarget) error
}

// --- SÉCURITÉ (TOKENS) ---

// ClaimsDecoder extrait les claims du payload d'un token.
// Deux implémentations : décodage structurel pur, et décodage avec
// vérification de signature RS256 (l'établissement de confiance).
type ClaimsDecoder interface {
	DecodeClaims(token string) (*domain.SessionClaims, error)
}
