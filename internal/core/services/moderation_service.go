package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/ports"
)

// moderationService implémente ports.ModerationService.
// Les appels pour une même cible sont sérialisés : le check-and-insert de
// déduplication est atomique, et chaque franchissement de palier ne notifie
// qu'une fois même sous arrivées concurrentes.
type moderationService struct {
	repo       ports.ReportRepository
	directory  ports.IdentityDirectory
	notifier   ports.ModerationNotifier
	thresholds domain.ModerationThresholds
	targets    *keyMutex
}

func NewModerationService(
	repo ports.ReportRepository,
	directory ports.IdentityDirectory,
	notifier ports.ModerationNotifier,
	thresholds domain.ModerationThresholds,
) (ports.ModerationService, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &moderationService{
		repo:       repo,
		directory:  directory,
		notifier:   notifier,
		thresholds: thresholds,
		targets:    newKeyMutex(),
	}, nil
}

func (s *moderationService) FileReport(ctx context.Context, cmd ports.FileReportCmd) (domain.Verdict, error) {
	target := domain.ReportTarget{Category: cmd.Category, ID: cmd.TargetID}

	// Les invariants (self-report inclus) sont validés par le domaine.
	report, err := domain.NewReport(cmd.ReporterEmail, target, cmd.Reason)
	if err != nil {
		return "", err
	}

	ok, err := s.directory.Exists(ctx, report.ReporterEmail)
	if err != nil {
		return "", fmt.Errorf("%w: identity directory: %v", domain.ErrUnavailable, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: reporter %s", domain.ErrUserNotFound, report.ReporterEmail)
	}

	// Une cible utilisateur doit résoudre. Un id de post appartient au
	// post-service : on ne peut pas le vérifier ici.
	if target.Category == domain.CategoryUser {
		ok, err := s.directory.Exists(ctx, target.ID)
		if err != nil {
			return "", fmt.Errorf("%w: identity directory: %v", domain.ErrUnavailable, err)
		}
		if !ok {
			return "", fmt.Errorf("%w: target %s", domain.ErrUserNotFound, target.ID)
		}
	}

	unlock := s.targets.Lock(target.Key())
	defer unlock()

	inserted, err := s.repo.InsertReport(ctx, report)
	if err != nil {
		return "", fmt.Errorf("%w: report store: %v", domain.ErrUnavailable, err)
	}
	if !inserted {
		slog.Debug("duplicate report ignored", "reporter", report.ReporterEmail, "target", target.Key())
	}

	count, err := s.repo.CountReporters(ctx, target)
	if err != nil {
		return "", fmt.Errorf("%w: report store: %v", domain.ErrUnavailable, err)
	}

	verdict := domain.VerdictForCount(count, s.thresholds)
	s.notifyCrossings(ctx, target, verdict)
	return verdict, nil
}

// notifyCrossings marque chaque palier atteint et ne publie que pour le
// premier franchissement (le marqueur est la garantie inter-process).
func (s *moderationService) notifyCrossings(ctx context.Context, target domain.ReportTarget, verdict domain.Verdict) {
	if verdict == domain.VerdictClear {
		return
	}

	stages := []domain.Verdict{domain.VerdictFlagged}
	if verdict == domain.VerdictRemoved {
		stages = append(stages, domain.VerdictRemoved)
	}

	for _, stage := range stages {
		first, err := s.repo.MarkStageCrossed(ctx, target, stage)
		if err != nil {
			slog.Error("failed to mark moderation stage", "target", target.Key(), "stage", stage, "error", err)
			continue
		}
		if !first {
			continue
		}

		// Publication best effort : le marqueur est posé, on ne re-notifiera
		// pas, donc une erreur de broker se loggue et se traite à la main.
		var pubErr error
		switch stage {
		case domain.VerdictFlagged:
			pubErr = s.notifier.PublishTargetFlagged(ctx, target)
		case domain.VerdictRemoved:
			pubErr = s.notifier.PublishTargetRemoved(ctx, target)
		}
		if pubErr != nil {
			slog.Error("failed to publish moderation event", "target", target.Key(), "stage", stage, "error", pubErr)
		} else {
			slog.Info("moderation stage crossed", "target", target.Key(), "stage", stage)
		}
	}
}

func (s *moderationService) GetVerdict(ctx context.Context, target domain.ReportTarget) (domain.Verdict, error) {
	count, err := s.repo.CountReporters(ctx, target)
	if err != nil {
		return "", fmt.Errorf("%w: report store: %v", domain.ErrUnavailable, err)
	}
	return domain.VerdictForCount(count, s.thresholds), nil
}

func (s *moderationService) ResetTarget(ctx context.Context, target domain.ReportTarget) error {
	unlock := s.targets.Lock(target.Key())
	defer unlock()

	if err := s.repo.ResetTarget(ctx, target); err != nil {
		return fmt.Errorf("%w: report store: %v", domain.ErrUnavailable, err)
	}
	slog.Info("moderation target reset", "target", target.Key())
	return nil
}
