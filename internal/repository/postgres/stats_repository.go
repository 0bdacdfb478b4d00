package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"admissions/internal/common"
	"admissions/internal/domain/candidature"
	"admissions/internal/domain/document"
	"admissions/internal/domain/interview"
	"admissions/internal/domain/period"
	"admissions/internal/domain/stats"
	"admissions/internal/domain/user"
)

type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, common.NewError(common.CodeInternal, "failed to compute statistics", err)
	}
	return n, nil
}

func (r *StatsRepository) currentPeriod(ctx context.Context) (common.UUID, string, error) {
	var id common.UUID
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT id, nom FROM periodes WHERE statut = $1 ORDER BY date_debut DESC LIMIT 1`, period.StatusActive).Scan(&id, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", common.NewError(common.CodeInternal, "failed to load current period", err)
	}
	return id, name, nil
}

func (r *StatsRepository) countByStatus(ctx context.Context, query string, args ...any) (map[string]int, error) {
	counts := make(map[string]int, len(candidature.Statuses()))
	for _, status := range candidature.Statuses() {
		counts[string(status)] = 0
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to compute statistics", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan statistics", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *StatsRepository) Dashboard(ctx context.Context, now time.Time) (*stats.Dashboard, error) {
	var d stats.Dashboard
	var err error
	if d.TotalCandidatures, err = r.count(ctx, `SELECT COUNT(*) FROM candidatures`); err != nil {
		return nil, err
	}
	if d.ActiveCandidatures, err = r.count(ctx, `SELECT COUNT(*) FROM candidatures c JOIN periodes pe ON pe.id = c.periode_id WHERE pe.statut = $1`, period.StatusActive); err != nil {
		return nil, err
	}
	if d.TotalExaminers, err = r.count(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, user.RoleExaminer); err != nil {
		return nil, err
	}
	if d.PeriodsThisYear, err = r.count(ctx, `SELECT COUNT(*) FROM periodes WHERE annee = $1`, now.Year()); err != nil {
		return nil, err
	}
	currentID, currentName, err := r.currentPeriod(ctx)
	if err != nil {
		return nil, err
	}
	if currentID.IsZero() {
		d.CurrentPeriodByState = map[string]int{}
		return &d, nil
	}
	d.CurrentPeriodID = &currentID
	d.CurrentPeriodName = currentName
	d.CurrentPeriodByState, err = r.countByStatus(ctx, `SELECT statut, COUNT(*) FROM candidatures WHERE periode_id = $1 GROUP BY statut`, currentID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *StatsRepository) RecentActivities(ctx context.Context, limit int) ([]stats.Activity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT c.id, c.numero_candidature, c.statut, TRIM(u.prenom || ' ' || u.nom), ch.evenement, ch.description, ch.cree_a
		FROM chronologie ch
		JOIN candidatures c ON c.id = ch.candidature_id
		JOIN users u ON u.id = c.candidat_id
		ORDER BY ch.cree_a DESC LIMIT $1`, limit)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list recent activities", err)
	}
	defer rows.Close()
	items := []stats.Activity{}
	for rows.Next() {
		var a stats.Activity
		if err := rows.Scan(&a.CandidatureID, &a.CandidatureNumber, &a.CandidatureStatus, &a.CandidateName, &a.Kind, &a.Description, &a.CreatedAt); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan activity", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *StatsRepository) Coordinator(ctx context.Context, programIDs []common.UUID, now time.Time) (*stats.Coordinator, error) {
	ids := uuidArray(programIDs)
	out := stats.Coordinator{Programs: len(programIDs)}
	var err error
	if out.Candidatures, err = r.count(ctx, `SELECT COUNT(*) FROM candidatures WHERE programme_id = ANY($1::uuid[])`, ids); err != nil {
		return nil, err
	}
	if out.ByStatus, err = r.countByStatus(ctx, `SELECT statut, COUNT(*) FROM candidatures WHERE programme_id = ANY($1::uuid[]) GROUP BY statut`, ids); err != nil {
		return nil, err
	}
	if out.UpcomingInterviews, err = r.count(ctx, `SELECT COUNT(*) FROM entretiens e JOIN candidatures c ON c.id = e.candidature_id
		WHERE c.programme_id = ANY($1::uuid[]) AND e.statut = $2 AND e.date_programmee >= $3::date`,
		ids, interview.StatusScheduled, now.Format("2006-01-02")); err != nil {
		return nil, err
	}
	if out.PendingDocuments, err = r.count(ctx, `SELECT COUNT(*) FROM documents d JOIN candidatures c ON c.id = d.candidature_id
		WHERE c.programme_id = ANY($1::uuid[]) AND d.statut = $2`, ids, document.StatusPending); err != nil {
		return nil, err
	}
	return &out, nil
}

// Interviewer counts the examiner's interviews in the current period, or in
// every period when none is active.
func (r *StatsRepository) Interviewer(ctx context.Context, examinerID common.UUID, now time.Time) (*stats.Interviewer, error) {
	currentID, _, err := r.currentPeriod(ctx)
	if err != nil {
		return nil, err
	}
	scope := `e.examinateur_id = $1`
	args := []any{examinerID}
	if !currentID.IsZero() {
		scope += ` AND e.periode_id = $2`
		args = append(args, currentID)
	}
	var out stats.Interviewer
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE e.statut = '`+string(interview.StatusDone)+`'),
		COUNT(*) FILTER (WHERE e.statut = '`+string(interview.StatusScheduled)+`'),
		COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM notes_entretien n WHERE n.entretien_id = e.id))
		FROM entretiens e WHERE `+scope, args...).Scan(&out.Assigned, &out.Completed, &out.Pending, &out.NotesSubmitted)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to compute interviewer statistics", err)
	}
	return &out, nil
}
