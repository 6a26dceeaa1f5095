package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/ports"
)

type moderationFixture struct {
	svc      ports.ModerationService
	repo     *fakeReportRepo
	notifier *fakeNotifier
}

func newModerationFixture(t *testing.T, thresholds domain.ModerationThresholds, emails ...string) *moderationFixture {
	t.Helper()
	repo := newFakeReportRepo()
	notifier := newFakeNotifier()
	svc, err := NewModerationService(repo, newFakeDirectory(emails...), notifier, thresholds)
	if err != nil {
		t.Fatalf("NewModerationService() error = %v", err)
	}
	return &moderationFixture{svc: svc, repo: repo, notifier: notifier}
}

func postReport(reporter, postID string) ports.FileReportCmd {
	return ports.FileReportCmd{
		ReporterEmail: reporter,
		Category:      domain.CategoryPost,
		TargetID:      postID,
		Reason:        "inappropriate content",
	}
}

func TestNewModerationService_BadThresholds(t *testing.T) {
	tests := []struct {
		name string
		low  int
		high int
	}{
		{name: "zero low", low: 0, high: 10},
		{name: "negative low", low: -1, high: 10},
		{name: "high below low", low: 5, high: 3},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewModerationService(newFakeReportRepo(), newFakeDirectory(), newFakeNotifier(),
				domain.ModerationThresholds{Low: test.low, High: test.high})
			if err == nil {
				t.Fatalf("NewModerationService(low=%d, high=%d) accepted invalid thresholds", test.low, test.high)
			}
		})
	}
}

// Requirement: re-signaler la même cible est un no-op qui retourne le même
// verdict, et le count ne bouge que de 1 au total.
func TestModerationService_Deduplication(t *testing.T) {
	f := newModerationFixture(t, domain.ModerationThresholds{Low: 3, High: 10}, "r1@macro.dev")
	ctx := context.Background()
	target := domain.ReportTarget{Category: domain.CategoryPost, ID: "post-42"}

	first, err := f.svc.FileReport(ctx, postReport("r1@macro.dev", "post-42"))
	if err != nil {
		t.Fatalf("first FileReport() error = %v", err)
	}
	second, err := f.svc.FileReport(ctx, postReport("r1@macro.dev", "post-42"))
	if err != nil {
		t.Fatalf("second FileReport() error = %v", err)
	}

	if first != second {
		t.Errorf("duplicate report changed verdict: %v then %v", first, second)
	}

	count, _ := f.repo.CountReporters(ctx, target)
	if count != 1 {
		t.Errorf("reporter count = %d, want 1 (deduplicated)", count)
	}
}

func TestModerationService_FileReportErrors(t *testing.T) {
	tests := []struct {
		name    string
		cmd     ports.FileReportCmd
		wantErr error
	}{
		{
			name: "self report",
			cmd: ports.FileReportCmd{
				ReporterEmail: "r1@macro.dev",
				Category:      domain.CategoryUser,
				TargetID:      "r1@macro.dev",
			},
			wantErr: domain.ErrSelfReport,
		},
		{
			name:    "empty reporter",
			cmd:     ports.FileReportCmd{Category: domain.CategoryPost, TargetID: "post-1"},
			wantErr: domain.ErrInvalidOperation,
		},
		{
			name:    "empty target",
			cmd:     ports.FileReportCmd{ReporterEmail: "r1@macro.dev", Category: domain.CategoryPost},
			wantErr: domain.ErrInvalidOperation,
		},
		{
			name:    "unknown category",
			cmd:     ports.FileReportCmd{ReporterEmail: "r1@macro.dev", Category: "meme", TargetID: "x"},
			wantErr: domain.ErrInvalidOperation,
		},
		{
			name:    "unknown reporter",
			cmd:     postReport("ghost@macro.dev", "post-1"),
			wantErr: domain.ErrNotFound,
		},
		{
			name: "unknown user target",
			cmd: ports.FileReportCmd{
				ReporterEmail: "r1@macro.dev",
				Category:      domain.CategoryUser,
				TargetID:      "ghost@macro.dev",
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newModerationFixture(t, domain.ModerationThresholds{Low: 3, High: 10}, "r1@macro.dev", "r2@macro.dev")
			_, err := f.svc.FileReport(context.Background(), test.cmd)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("FileReport() error = %v, want %v", err, test.wantErr)
			}
		})
	}
}

// Requirement: avec low=3, 3 reporters distincts font Clear -> Flagged, la
// notification part exactement une fois, et un 4e reporter ne la refait pas
// partir.
func TestModerationService_FlaggedThreshold(t *testing.T) {
	reporters := []string{"r1@macro.dev", "r2@macro.dev", "r3@macro.dev", "r4@macro.dev"}
	f := newModerationFixture(t, domain.ModerationThresholds{Low: 3, High: 10}, reporters...)
	ctx := context.Background()

	wantVerdicts := []domain.Verdict{domain.VerdictClear, domain.VerdictClear, domain.VerdictFlagged, domain.VerdictFlagged}
	for i, reporter := range reporters {
		verdict, err := f.svc.FileReport(ctx, postReport(reporter, "post-42"))
		if err != nil {
			t.Fatalf("FileReport(%s) error = %v", reporter, err)
		}
		if verdict != wantVerdicts[i] {
			t.Errorf("report %d verdict = %v, want %v", i+1, verdict, wantVerdicts[i])
		}
	}

	if got := f.notifier.flaggedCount(); got != 1 {
		t.Errorf("flagged notifications = %d, want exactly 1", got)
	}
	if got := f.notifier.removedCount(); got != 0 {
		t.Errorf("removed notifications = %d, want 0", got)
	}
}

// Requirement: franchir High fait Flagged -> Removed, onRemoved part une
// seule fois même si les deux paliers sont franchis par le même signalement.
func TestModerationService_RemovedThreshold(t *testing.T) {
	var reporters []string
	for i := 1; i <= 5; i++ {
		reporters = append(reporters, fmt.Sprintf("r%d@macro.dev", i))
	}
	f := newModerationFixture(t, domain.ModerationThresholds{Low: 2, High: 4}, reporters...)
	ctx := context.Background()

	var last domain.Verdict
	for _, reporter := range reporters {
		verdict, err := f.svc.FileReport(ctx, postReport(reporter, "post-7"))
		if err != nil {
			t.Fatalf("FileReport(%s) error = %v", reporter, err)
		}
		last = verdict
	}

	if last != domain.VerdictRemoved {
		t.Errorf("final verdict = %v, want %v", last, domain.VerdictRemoved)
	}
	if got := f.notifier.flaggedCount(); got != 1 {
		t.Errorf("flagged notifications = %d, want 1", got)
	}
	if got := f.notifier.removedCount(); got != 1 {
		t.Errorf("removed notifications = %d, want exactly 1", got)
	}
}

// Un seul signalement qui passe directement les deux seuils (low=1, high=1)
// émet flagged ET removed, une fois chacun.
func TestModerationService_BothStagesAtOnce(t *testing.T) {
	f := newModerationFixture(t, domain.ModerationThresholds{Low: 1, High: 1}, "r1@macro.dev")

	verdict, err := f.svc.FileReport(context.Background(), postReport("r1@macro.dev", "post-1"))
	if err != nil {
		t.Fatalf("FileReport() error = %v", err)
	}
	if verdict != domain.VerdictRemoved {
		t.Errorf("verdict = %v, want %v", verdict, domain.VerdictRemoved)
	}
	if f.notifier.flaggedCount() != 1 || f.notifier.removedCount() != 1 {
		t.Errorf("notifications = (%d flagged, %d removed), want (1, 1)",
			f.notifier.flaggedCount(), f.notifier.removedCount())
	}
}

func TestModerationService_GetVerdict(t *testing.T) {
	f := newModerationFixture(t, domain.ModerationThresholds{Low: 2, High: 4}, "r1@macro.dev", "r2@macro.dev")
	ctx := context.Background()
	target := domain.ReportTarget{Category: domain.CategoryPost, ID: "post-9"}

	verdict, err := f.svc.GetVerdict(ctx, target)
	if err != nil {
		t.Fatalf("GetVerdict() error = %v", err)
	}
	if verdict != domain.VerdictClear {
		t.Errorf("verdict before reports = %v, want %v", verdict, domain.VerdictClear)
	}

	for _, r := range []string{"r1@macro.dev", "r2@macro.dev"} {
		if _, err := f.svc.FileReport(ctx, postReport(r, "post-9")); err != nil {
			t.Fatalf("FileReport(%s) error = %v", r, err)
		}
	}

	verdict, err = f.svc.GetVerdict(ctx, target)
	if err != nil {
		t.Fatalf("GetVerdict() error = %v", err)
	}
	if verdict != domain.VerdictFlagged {
		t.Errorf("verdict = %v, want %v", verdict, domain.VerdictFlagged)
	}
}

// Requirement: reset = retour à Clear et réarmement des notifications.
func TestModerationService_ResetTarget(t *testing.T) {
	f := newModerationFixture(t, domain.ModerationThresholds{Low: 2, High: 10},
		"r1@macro.dev", "r2@macro.dev", "r3@macro.dev")
	ctx := context.Background()
	target := domain.ReportTarget{Category: domain.CategoryPost, ID: "post-5"}

	for _, r := range []string{"r1@macro.dev", "r2@macro.dev"} {
		if _, err := f.svc.FileReport(ctx, postReport(r, "post-5")); err != nil {
			t.Fatalf("FileReport(%s) error = %v", r, err)
		}
	}
	if err := f.svc.ResetTarget(ctx, target); err != nil {
		t.Fatalf("ResetTarget() error = %v", err)
	}

	verdict, err := f.svc.GetVerdict(ctx, target)
	if err != nil {
		t.Fatalf("GetVerdict() error = %v", err)
	}
	if verdict != domain.VerdictClear {
		t.Errorf("verdict after reset = %v, want %v", verdict, domain.VerdictClear)
	}

	// Un reporter déjà résolu peut re-signaler, et la notification repart.
	for _, r := range []string{"r1@macro.dev", "r3@macro.dev"} {
		if _, err := f.svc.FileReport(ctx, postReport(r, "post-5")); err != nil {
			t.Fatalf("FileReport(%s) after reset error = %v", r, err)
		}
	}
	if got := f.notifier.flaggedCount(); got != 2 {
		t.Errorf("flagged notifications = %d, want 2 (one per flagging cycle)", got)
	}
}

// Requirement: sous arrivées concurrentes sur la même cible, le
// check-and-insert reste atomique et chaque palier ne notifie qu'une fois.
func TestModerationService_ConcurrentReports(t *testing.T) {
	const reporterCount = 50
	var reporters []string
	for i := 0; i < reporterCount; i++ {
		reporters = append(reporters, fmt.Sprintf("r%d@macro.dev", i))
	}
	f := newModerationFixture(t, domain.ModerationThresholds{Low: 5, High: 20}, reporters...)
	target := domain.ReportTarget{Category: domain.CategoryPost, ID: "post-hot"}

	var wg sync.WaitGroup
	for _, reporter := range reporters {
		// Chaque reporter signale deux fois, en parallèle.
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(r string) {
				defer wg.Done()
				if _, err := f.svc.FileReport(context.Background(), postReport(r, "post-hot")); err != nil {
					t.Errorf("FileReport(%s) error = %v", r, err)
				}
			}(reporter)
		}
	}
	wg.Wait()

	count, _ := f.repo.CountReporters(context.Background(), target)
	if count != reporterCount {
		t.Errorf("reporter count = %d, want %d (dedup under concurrency)", count, reporterCount)
	}
	if got := f.notifier.flaggedCount(); got != 1 {
		t.Errorf("flagged notifications = %d, want exactly 1", got)
	}
	if got := f.notifier.removedCount(); got != 1 {
		t.Errorf("removed notifications = %d, want exactly 1", got)
	}
}
