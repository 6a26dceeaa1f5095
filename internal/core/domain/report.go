package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyReporter     = errors.New("reporter email is required")
	ErrEmptyReportTarget = errors.New("report target id is required")
	ErrUnknownCategory   = errors.New("unknown report category")
	ErrBadThresholds     = errors.New("thresholds must satisfy 0 < low <= high")
)

// ReportCategory distingue un signalement de post d'un signalement d'utilisateur.
type ReportCategory string

const (
	CategoryPost ReportCategory = "post"
	CategoryUser ReportCategory = "user"
)

// ReportTarget désigne la cible d'un signalement : un identifiant de post,
// ou l'email d'un utilisateur selon la catégorie.
type ReportTarget struct {
	Category ReportCategory
	ID       string
}

// Key donne la clé de sérialisation/stockage d'une cible.
func (t ReportTarget) Key() string {
	return string(t.Category) + ":" + t.ID
}

// Report est immuable une fois créé. Un même reporter ne contribue
// qu'un seul signalement actif par cible (dédupliqué côté stockage).
type Report struct {
	ID            string
	ReporterEmail string
	Target        ReportTarget
	Reason        string
	FiledAt       time.Time
}

// NewReport valide les invariants et génère l'ID ici, pas en DB.
func NewReport(reporterEmail string, target ReportTarget, reason string) (*Report, error) {
	reporterEmail = strings.ToLower(strings.TrimSpace(reporterEmail))
	if reporterEmail == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOperation, ErrEmptyReporter)
	}
	if target.ID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOperation, ErrEmptyReportTarget)
	}
	switch target.Category {
	case CategoryPost, CategoryUser:
	default:
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidOperation, ErrUnknownCategory, target.Category)
	}
	// Auto-signalement : rejeté uniquement pour les cibles utilisateur,
	// un post n'a pas d'email.
	if target.Category == CategoryUser && strings.EqualFold(target.ID, reporterEmail) {
		return nil, ErrSelfReport
	}

	return &Report{
		ID:            uuid.NewString(),
		ReporterEmail: reporterEmail,
		Target:        target,
		Reason:        strings.TrimSpace(reason),
		FiledAt:       time.Now().UTC(),
	}, nil
}

// Verdict est le jugement agrégé dérivé du nombre de reporters distincts.
// Jamais stocké tel quel : toujours recalculé depuis le set de signalements.
type Verdict string

const (
	VerdictClear   Verdict = "clear"
	VerdictFlagged Verdict = "flagged"
	VerdictRemoved Verdict = "removed"
)

// ModerationThresholds vient de la configuration, pas de constantes en dur.
type ModerationThresholds struct {
	Low  int // count >= Low  -> Flagged
	High int // count >= High -> Removed
}

func (t ModerationThresholds) Validate() error {
	if t.Low <= 0 || t.High < t.Low {
		return fmt.Errorf("%w: low=%d high=%d", ErrBadThresholds, t.Low, t.High)
	}
	return nil
}

// VerdictForCount applique la politique de seuils. Les transitions ne
// reculent jamais automatiquement : le count ne décroît que via un reset.
func VerdictForCount(count int, t ModerationThresholds) Verdict {
	switch {
	case count >= t.High:
		return VerdictRemoved
	case count >= t.Low:
		return VerdictFlagged
	default:
		return VerdictClear
	}
}
