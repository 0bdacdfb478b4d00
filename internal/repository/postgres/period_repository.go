package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"admissions/internal/common"
	"admissions/internal/domain/candidature"
	"admissions/internal/domain/period"
)

const periodColumns = `pe.id, pe.nom, pe.annee, pe.semestre, pe.date_debut, pe.date_fin, pe.date_limite_candidature, pe.date_decision, pe.statut,
	COALESCE((SELECT ARRAY_AGG(pp.programme_id::text ORDER BY pp.programme_id) FROM periode_programmes pp WHERE pp.periode_id = pe.id), '{}'),
	pe.cree_a, pe.modifie_a`

const periodCounts = `,
	(SELECT COUNT(*) FROM candidatures c WHERE c.periode_id = pe.id),
	(SELECT COUNT(*) FROM candidatures c WHERE c.periode_id = pe.id AND c.statut = '` + string(candidature.StatusAccepted) + `'),
	(SELECT COUNT(*) FROM candidatures c WHERE c.periode_id = pe.id AND c.statut = '` + string(candidature.StatusRejected) + `')`

func scanPeriod(row rowScanner, extra ...any) (*period.Period, error) {
	var p period.Period
	var programIDs []string
	dest := []any{&p.ID, &p.Name, &p.Year, &p.Semester, &p.StartDate, &p.EndDate, &p.ApplicationCutoff, &p.DecisionDate, &p.Status,
		pq.Array(&programIDs), &p.CreatedAt, &p.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.ProgramIDs = toUUIDs(programIDs)
	return &p, nil
}

func scanPeriodSummary(row rowScanner) (*period.Summary, error) {
	var s period.Summary
	p, err := scanPeriod(row, &s.Candidatures, &s.Accepted, &s.Rejected)
	if err != nil {
		return nil, err
	}
	s.Period = *p
	return &s, nil
}

type PeriodRepository struct {
	db *sql.DB
}

func NewPeriodRepository(db *sql.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

func (r *PeriodRepository) Create(ctx context.Context, p *period.Period) error {
	now := time.Now().UTC()
	if p.ID.IsZero() {
		p.ID = common.NewUUID()
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO periodes (id, nom, annee, semestre, date_debut, date_fin, date_limite_candidature, date_decision, statut, cree_a, modifie_a)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			p.ID, p.Name, p.Year, p.Semester, p.StartDate, p.EndDate, p.ApplicationCutoff, p.DecisionDate, p.Status, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return wrapError(err, "create period")
		}
		return replacePeriodPrograms(ctx, tx, p.ID, p.ProgramIDs)
	})
}

func (r *PeriodRepository) GetByID(ctx context.Context, id common.UUID) (*period.Period, error) {
	p, err := scanPeriod(r.db.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM periodes pe WHERE pe.id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "period", "load period")
	}
	return p, nil
}

func (r *PeriodRepository) GetSummary(ctx context.Context, id common.UUID) (*period.Summary, error) {
	s, err := scanPeriodSummary(r.db.QueryRowContext(ctx, `SELECT `+periodColumns+periodCounts+` FROM periodes pe WHERE pe.id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "period", "load period")
	}
	return s, nil
}

func (r *PeriodRepository) List(ctx context.Context) ([]period.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+periodColumns+periodCounts+` FROM periodes pe ORDER BY pe.annee DESC, pe.date_debut DESC`)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list periods", err)
	}
	defer rows.Close()
	var items []period.Summary
	for rows.Next() {
		s, err := scanPeriodSummary(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan period", err)
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

func (r *PeriodRepository) ListActive(ctx context.Context, now time.Time) ([]period.Period, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+periodColumns+` FROM periodes pe
		WHERE pe.statut = $1 AND pe.date_debut <= $2 AND pe.date_limite_candidature >= $2
		ORDER BY pe.date_limite_candidature`, period.StatusActive, now)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list active periods", err)
	}
	defer rows.Close()
	var items []period.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan period", err)
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

func (r *PeriodRepository) Update(ctx context.Context, p *period.Period) error {
	p.UpdatedAt = time.Now().UTC()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE periodes SET nom = $1, annee = $2, semestre = $3, date_debut = $4, date_fin = $5,
			date_limite_candidature = $6, date_decision = $7, statut = $8, modifie_a = $9 WHERE id = $10`,
			p.Name, p.Year, p.Semester, p.StartDate, p.EndDate, p.ApplicationCutoff, p.DecisionDate, p.Status, p.UpdatedAt, p.ID)
		if err != nil {
			return wrapError(err, "update period")
		}
		if err := expectAffected(result, "period"); err != nil {
			return err
		}
		return replacePeriodPrograms(ctx, tx, p.ID, p.ProgramIDs)
	})
}

func (r *PeriodRepository) Delete(ctx context.Context, id common.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM periodes WHERE id = $1`, id)
	if err != nil {
		return wrapError(err, "delete period")
	}
	return expectAffected(result, "period")
}

func replacePeriodPrograms(ctx context.Context, tx *sql.Tx, periodID common.UUID, programIDs []common.UUID) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM periode_programmes WHERE periode_id = $1`, periodID); err != nil {
		return wrapError(err, "clear period programs")
	}
	for _, programID := range programIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO periode_programmes (periode_id, programme_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, periodID, programID); err != nil {
			return wrapError(err, "link period program")
		}
	}
	return nil
}
