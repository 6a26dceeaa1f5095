package services

import (
	"context"
	"errors"
	"sync"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
)

// Fakes in-memory pour tester le coeur sans Neo4j/Postgres/NATS.
// Tous sont sûrs pour un usage concurrent (les tests de linéarisation
// martèlent les services depuis plusieurs goroutines).

var errFakeDown = errors.New("fake dependency down")

// --- IdentityDirectory ---

type fakeDirectory struct {
	mu       sync.Mutex
	profiles map[string]*domain.ProfileSummary
	down     bool
}

func newFakeDirectory(emails ...string) *fakeDirectory {
	d := &fakeDirectory{profiles: make(map[string]*domain.ProfileSummary)}
	for _, email := range emails {
		d.profiles[email] = &domain.ProfileSummary{Email: email, Name: "user " + email}
	}
	return d
}

func (d *fakeDirectory) Exists(_ context.Context, email string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down {
		return false, errFakeDown
	}
	_, ok := d.profiles[email]
	return ok, nil
}

func (d *fakeDirectory) Resolve(_ context.Context, email string) (*domain.ProfileSummary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down {
		return nil, errFakeDown
	}
	p, ok := d.profiles[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return p, nil
}

// --- FollowRepository ---

type fakeEdge struct {
	follower string
	followee string
}

type fakeFollowRepo struct {
	mu    sync.Mutex
	edges []fakeEdge // ordre d'insertion = ordre de création
}

func newFakeFollowRepo() *fakeFollowRepo {
	return &fakeFollowRepo{}
}

func (r *fakeFollowRepo) EnsureSchema(context.Context) error { return nil }

func (r *fakeFollowRepo) HasRelation(_ context.Context, follower, followee string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.edges {
		if e.follower == follower && e.followee == followee {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeFollowRepo) CreateRelation(_ context.Context, follower, followee string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, fakeEdge{follower: follower, followee: followee})
	return nil
}

func (r *fakeFollowRepo) DeleteRelation(_ context.Context, follower, followee string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.edges {
		if e.follower == follower && e.followee == followee {
			r.edges = append(r.edges[:i], r.edges[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeFollowRepo) GetRelationStatus(_ context.Context, actor, target string) (*domain.RelationStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := &domain.RelationStatus{}
	for _, e := range r.edges {
		if e.follower == actor && e.followee == target {
			status.IsFollowing = true
		}
		if e.follower == target && e.followee == actor {
			status.IsFollowedBy = true
		}
	}
	return status, nil
}

func (r *fakeFollowRepo) ListFollowerEmails(_ context.Context, of string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var emails []string
	for _, e := range r.edges {
		if e.followee == of {
			emails = append(emails, e.follower)
		}
	}
	return emails, nil
}

func (r *fakeFollowRepo) ListFolloweeEmails(_ context.Context, of string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var emails []string
	for _, e := range r.edges {
		if e.follower == of {
			emails = append(emails, e.followee)
		}
	}
	return emails, nil
}

func (r *fakeFollowRepo) edgeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.edges)
}

// --- ReportRepository ---

type fakeReportRepo struct {
	mu        sync.Mutex
	reporters map[string]map[string]bool // target key -> set de reporters actifs
	stages    map[string]bool            // target key + stage
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{
		reporters: make(map[string]map[string]bool),
		stages:    make(map[string]bool),
	}
}

func (r *fakeReportRepo) InsertReport(_ context.Context, report *domain.Report) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := report.Target.Key()
	set, ok := r.reporters[key]
	if !ok {
		set = make(map[string]bool)
		r.reporters[key] = set
	}
	if set[report.ReporterEmail] {
		return false, nil
	}
	set[report.ReporterEmail] = true
	return true, nil
}

func (r *fakeReportRepo) CountReporters(_ context.Context, target domain.ReportTarget) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reporters[target.Key()]), nil
}

func (r *fakeReportRepo) MarkStageCrossed(_ context.Context, target domain.ReportTarget, stage domain.Verdict) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := target.Key() + "|" + string(stage)
	if r.stages[key] {
		return false, nil
	}
	r.stages[key] = true
	return true, nil
}

func (r *fakeReportRepo) ResetTarget(_ context.Context, target domain.ReportTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reporters, target.Key())
	for key := range r.stages {
		if len(key) > len(target.Key()) && key[:len(target.Key())] == target.Key() {
			delete(r.stages, key)
		}
	}
	return nil
}

// --- ModerationNotifier ---

type fakeNotifier struct {
	mu      sync.Mutex
	flagged []string
	removed []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{}
}

func (n *fakeNotifier) PublishTargetFlagged(_ context.Context, target domain.ReportTarget) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.flagged = append(n.flagged, target.Key())
	return nil
}

func (n *fakeNotifier) PublishTargetRemoved(_ context.Context, target domain.ReportTarget) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removed = append(n.removed, target.Key())
	return nil
}

func (n *fakeNotifier) flaggedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.flagged)
}

func (n *fakeNotifier) removedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.removed)
}

// --- ClaimsDecoder ---

type stubDecoder struct {
	claims *domain.SessionClaims
	err    error
}

func (d *stubDecoder) DecodeClaims(string) (*domain.SessionClaims, error) {
	return d.claims, d.err
}
