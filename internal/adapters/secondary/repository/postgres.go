package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
)

// PostgresReportRepo persiste le set de signalements et les marqueurs de
// palier. La déduplication et l'exactly-once reposent sur des contraintes
// UNIQUE + ON CONFLICT DO NOTHING : c'est la DB qui tranche les courses
// inter-process, le lock par cible du service tranche les courses locales.
//
// Schéma attendu :
//
//	CREATE TABLE reports (
//	    id              UUID PRIMARY KEY,
//	    reporter_email  TEXT NOT NULL,
//	    target_category TEXT NOT NULL,
//	    target_id       TEXT NOT NULL,
//	    reason          TEXT NOT NULL DEFAULT '',
//	    resolved        BOOLEAN NOT NULL DEFAULT FALSE,
//	    filed_at        TIMESTAMPTZ NOT NULL
//	);
//	CREATE UNIQUE INDEX reports_active_unique
//	    ON reports (reporter_email, target_category, target_id)
//	    WHERE NOT resolved;
//
//	CREATE TABLE moderation_stages (
//	    target_category TEXT NOT NULL,
//	    target_id       TEXT NOT NULL,
//	    stage           TEXT NOT NULL,
//	    crossed_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (target_category, target_id, stage)
//	);
type PostgresReportRepo struct {
	db *pgxpool.Pool
}

func NewPostgresReportRepo(pool *pgxpool.Pool) *PostgresReportRepo {
	return &PostgresReportRepo{db: pool}
}

// InsertReport retourne false quand le signalement actif existait déjà
// (l'index partiel absorbe le doublon, RowsAffected vaut 0).
func (r *PostgresReportRepo) InsertReport(ctx context.Context, report *domain.Report) (bool, error) {
	q := `
		INSERT INTO reports (id, reporter_email, target_category, target_id, reason, resolved, filed_at)
		VALUES (@id, @reporter_email, @target_category, @target_id, @reason, FALSE, @filed_at)
		ON CONFLICT (reporter_email, target_category, target_id) WHERE NOT resolved DO NOTHING
	`

	args := pgx.NamedArgs{
		"id":              report.ID,
		"reporter_email":  report.ReporterEmail,
		"target_category": string(report.Target.Category),
		"target_id":       report.Target.ID,
		"reason":          report.Reason,
		"filed_at":        report.FiledAt,
	}

	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return false, fmt.Errorf("db: insert report: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresReportRepo) CountReporters(ctx context.Context, target domain.ReportTarget) (int, error) {
	q := `
		SELECT COUNT(DISTINCT reporter_email)
		FROM reports
		WHERE target_category = $1 AND target_id = $2 AND NOT resolved
	`

	var count int
	if err := r.db.QueryRow(ctx, q, string(target.Category), target.ID).Scan(&count); err != nil {
		return 0, fmt.Errorf("db: count reporters: %w", err)
	}
	return count, nil
}

// MarkStageCrossed ne rend true qu'au premier franchissement : la PK
// (target, stage) fait que les appels suivants n'affectent aucune ligne.
func (r *PostgresReportRepo) MarkStageCrossed(ctx context.Context, target domain.ReportTarget, stage domain.Verdict) (bool, error) {
	q := `
		INSERT INTO moderation_stages (target_category, target_id, stage)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`

	tag, err := r.db.Exec(ctx, q, string(target.Category), target.ID, string(stage))
	if err != nil {
		return false, fmt.Errorf("db: mark stage: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ResetTarget résout les signalements actifs et réarme les marqueurs,
// dans une transaction pour ne jamais laisser un état intermédiaire.
func (r *PostgresReportRepo) ResetTarget(ctx context.Context, target domain.ReportTarget) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE reports SET resolved = TRUE WHERE target_category = $1 AND target_id = $2 AND NOT resolved`,
		string(target.Category), target.ID,
	); err != nil {
		return fmt.Errorf("db: resolve reports: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM moderation_stages WHERE target_category = $1 AND target_id = $2`,
		string(target.Category), target.ID,
	); err != nil {
		return fmt.Errorf("db: clear stages: %w", err)
	}

	return tx.Commit(ctx)
}
