package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/ports"
)

// followService implémente ports.FollowService.
// Les toggles sur la même paire ordonnée sont linéarisés via keyMutex :
// l'un observe l'effet de l'autre, jamais de lost update. Les paires
// disjointes passent en parallèle.
type followService struct {
	repo      ports.FollowRepository
	directory ports.IdentityDirectory
	pairs     *keyMutex
}

func NewFollowService(repo ports.FollowRepository, directory ports.IdentityDirectory) ports.FollowService {
	return &followService{
		repo:      repo,
		directory: directory,
		pairs:     newKeyMutex(),
	}
}

func pairKey(followerEmail, followeeEmail string) string {
	return followerEmail + "->" + followeeEmail
}

func (s *followService) ToggleFollow(ctx context.Context, followerEmail, followeeEmail string) (domain.FollowOutcome, error) {
	followerEmail = strings.ToLower(strings.TrimSpace(followerEmail))
	followeeEmail = strings.ToLower(strings.TrimSpace(followeeEmail))

	if followerEmail == "" || followeeEmail == "" {
		return "", fmt.Errorf("%w: emails cannot be empty", domain.ErrInvalidOperation)
	}
	if followerEmail == followeeEmail {
		return "", domain.ErrSelfFollow
	}

	// Les deux identités doivent résoudre avant de toucher au graphe.
	for _, email := range []string{followerEmail, followeeEmail} {
		ok, err := s.directory.Exists(ctx, email)
		if err != nil {
			return "", fmt.Errorf("%w: identity directory: %v", domain.ErrUnavailable, err)
		}
		if !ok {
			return "", fmt.Errorf("%w: %s", domain.ErrUserNotFound, email)
		}
	}

	// Section critique : le check-then-act sur l'arête doit être atomique
	// pour la paire.
	unlock := s.pairs.Lock(pairKey(followerEmail, followeeEmail))
	defer unlock()

	has, err := s.repo.HasRelation(ctx, followerEmail, followeeEmail)
	if err != nil {
		return "", fmt.Errorf("%w: follow graph: %v", domain.ErrUnavailable, err)
	}

	if has {
		if err := s.repo.DeleteRelation(ctx, followerEmail, followeeEmail); err != nil {
			return "", fmt.Errorf("%w: follow graph: %v", domain.ErrUnavailable, err)
		}
		return domain.Unfollowed, nil
	}

	if err := s.repo.CreateRelation(ctx, followerEmail, followeeEmail); err != nil {
		return "", fmt.Errorf("%w: follow graph: %v", domain.ErrUnavailable, err)
	}
	return domain.Followed, nil
}

func (s *followService) ListFollowers(ctx context.Context, q ports.ListQuery) ([]*domain.ProfileSummary, error) {
	return s.list(ctx, q, s.repo.ListFollowerEmails)
}

func (s *followService) ListFollowees(ctx context.Context, q ports.ListQuery) ([]*domain.ProfileSummary, error) {
	return s.list(ctx, q, s.repo.ListFolloweeEmails)
}

func (s *followService) list(ctx context.Context, q ports.ListQuery, fetch func(context.Context, string) ([]string, error)) ([]*domain.ProfileSummary, error) {
	of := strings.ToLower(strings.TrimSpace(q.Of))
	if of == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", domain.ErrInvalidOperation)
	}

	ok, err := s.directory.Exists(ctx, of)
	if err != nil {
		return nil, fmt.Errorf("%w: identity directory: %v", domain.ErrUnavailable, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, of)
	}

	emails, err := fetch(ctx, of)
	if err != nil {
		return nil, fmt.Errorf("%w: follow graph: %v", domain.ErrUnavailable, err)
	}

	// Résolution en gardant l'ordre du graphe (ordre de création d'arête).
	profiles := make([]*domain.ProfileSummary, 0, len(emails))
	for _, email := range emails {
		profile, err := s.directory.Resolve(ctx, email)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Compte disparu depuis la création de l'arête : on saute.
				slog.Debug("skipping vanished profile in listing", "email", email, "viewer", q.Viewer)
				continue
			}
			return nil, fmt.Errorf("%w: identity directory: %v", domain.ErrUnavailable, err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (s *followService) CheckRelation(ctx context.Context, actorEmail, targetEmail string) (*domain.RelationStatus, error) {
	status, err := s.repo.GetRelationStatus(ctx, strings.ToLower(actorEmail), strings.ToLower(targetEmail))
	if err != nil {
		return nil, fmt.Errorf("%w: follow graph: %v", domain.ErrUnavailable, err)
	}
	return status, nil
}
