package postgres

import (
	"context"
	"database/sql"
	"time"

	"admissions/internal/common"
	"admissions/internal/domain/interview"
)

const interviewColumns = `e.id, e.candidature_id, e.examinateur_id, e.periode_id, e.type, e.format, e.date_programmee, e.heure_programmee, e.duree,
	e.lieu, e.lien_reunion, e.id_reunion, e.mot_de_passe_reunion, e.titre, e.description, e.statut, e.recommandation, e.cree_a, e.modifie_a`

const detailSelect = `SELECT ` + interviewColumns + `, c.candidat_id, c.programme_id, c.numero_candidature,
	TRIM(cu.prenom || ' ' || cu.nom), TRIM(eu.prenom || ' ' || eu.nom)
	FROM entretiens e
	JOIN candidatures c ON c.id = e.candidature_id
	JOIN users cu ON cu.id = c.candidat_id
	JOIN users eu ON eu.id = e.examinateur_id`

func interviewDest(iv *interview.Interview) []any {
	return []any{&iv.ID, &iv.CandidatureID, &iv.ExaminerID, &iv.PeriodID, &iv.Type, &iv.Format, &iv.Date, &iv.Time, &iv.DurationMinutes,
		&iv.Location, &iv.MeetingLink, &iv.MeetingID, &iv.MeetingPassword, &iv.Title, &iv.Description, &iv.Status, &iv.Recommendation,
		&iv.CreatedAt, &iv.UpdatedAt}
}

func scanDetail(row rowScanner) (*interview.Detail, error) {
	var d interview.Detail
	dest := append(interviewDest(&d.Interview), &d.CandidateID, &d.ProgramID, &d.CandidatureNumber, &d.CandidateName, &d.ExaminerName)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &d, nil
}

type InterviewRepository struct {
	db *sql.DB
}

func NewInterviewRepository(db *sql.DB) *InterviewRepository {
	return &InterviewRepository{db: db}
}

func (r *InterviewRepository) Create(ctx context.Context, iv *interview.Interview) error {
	now := time.Now().UTC()
	if iv.ID.IsZero() {
		iv.ID = common.NewUUID()
	}
	iv.CreatedAt = now
	iv.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `INSERT INTO entretiens (id, candidature_id, examinateur_id, periode_id, type, format, date_programmee, heure_programmee,
		duree, lieu, lien_reunion, id_reunion, mot_de_passe_reunion, titre, description, statut, recommandation, cree_a, modifie_a)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		iv.ID, iv.CandidatureID, iv.ExaminerID, iv.PeriodID, iv.Type, iv.Format, iv.Date, iv.Time, iv.DurationMinutes,
		iv.Location, iv.MeetingLink, iv.MeetingID, iv.MeetingPassword, iv.Title, iv.Description, iv.Status, iv.Recommendation, iv.CreatedAt, iv.UpdatedAt)
	if err != nil {
		return wrapError(err, "create interview")
	}
	return nil
}

func (r *InterviewRepository) GetByID(ctx context.Context, id common.UUID) (*interview.Detail, error) {
	d, err := scanDetail(r.db.QueryRowContext(ctx, detailSelect+` WHERE e.id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "interview", "load interview")
	}
	return d, nil
}

func (r *InterviewRepository) List(ctx context.Context, filter interview.Filter) ([]interview.Detail, error) {
	w := &where{}
	if filter.Status != "" {
		w.and("e.statut = " + w.arg(filter.Status))
	}
	if filter.Date != nil {
		w.and("e.date_programmee = " + w.arg(filter.Date.Format("2006-01-02")) + "::date")
	}
	if !filter.ExaminerID.IsZero() {
		w.and("e.examinateur_id = " + w.arg(filter.ExaminerID))
	}
	if !filter.PeriodID.IsZero() {
		w.and("e.periode_id = " + w.arg(filter.PeriodID))
	}
	if !filter.CandidateID.IsZero() {
		w.and("c.candidat_id = " + w.arg(filter.CandidateID))
	}
	rows, err := r.db.QueryContext(ctx, detailSelect+w.String()+` ORDER BY e.date_programmee, e.heure_programmee`, w.args...)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list interviews", err)
	}
	defer rows.Close()
	items := []interview.Detail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan interview", err)
		}
		items = append(items, *d)
	}
	return items, rows.Err()
}

func (r *InterviewRepository) Update(ctx context.Context, iv *interview.Interview) error {
	iv.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `UPDATE entretiens SET examinateur_id = $1, type = $2, format = $3, date_programmee = $4, heure_programmee = $5,
		duree = $6, lieu = $7, lien_reunion = $8, id_reunion = $9, mot_de_passe_reunion = $10, titre = $11, description = $12, statut = $13,
		recommandation = $14, modifie_a = $15 WHERE id = $16`,
		iv.ExaminerID, iv.Type, iv.Format, iv.Date, iv.Time, iv.DurationMinutes, iv.Location, iv.MeetingLink, iv.MeetingID,
		iv.MeetingPassword, iv.Title, iv.Description, iv.Status, iv.Recommendation, iv.UpdatedAt, iv.ID)
	if err != nil {
		return wrapError(err, "update interview")
	}
	return expectAffected(result, "interview")
}

func (r *InterviewRepository) AddNote(ctx context.Context, n *interview.Note) error {
	if n.ID.IsZero() {
		n.ID = common.NewUUID()
	}
	n.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO notes_entretien (id, entretien_id, auteur_id, evaluation_technique, competences_communication,
		motivation_adequation, recommandation_globale, note_technique, note_communication, note_motivation, note_globale, points_forts,
		points_faibles, commentaires_supplementaires, est_complete, est_brouillon, cree_a)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		n.ID, n.InterviewID, n.AuthorID, n.TechnicalEvaluation, n.CommunicationSkills, n.MotivationFit, n.OverallRecommendation,
		n.TechnicalScore, n.CommunicationScore, n.MotivationScore, n.OverallScore, n.Strengths, n.Weaknesses, n.AdditionalComments,
		n.Complete, n.Draft, n.CreatedAt)
	if err != nil {
		return wrapError(err, "store interview note")
	}
	return nil
}

func (r *InterviewRepository) ListNotes(ctx context.Context, interviewID common.UUID) ([]interview.Note, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, entretien_id, auteur_id, evaluation_technique, competences_communication, motivation_adequation,
		recommandation_globale, note_technique, note_communication, note_motivation, note_globale, points_forts, points_faibles,
		commentaires_supplementaires, est_complete, est_brouillon, cree_a
		FROM notes_entretien WHERE entretien_id = $1 ORDER BY cree_a DESC`, interviewID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list interview notes", err)
	}
	defer rows.Close()
	items := []interview.Note{}
	for rows.Next() {
		var n interview.Note
		if err := rows.Scan(&n.ID, &n.InterviewID, &n.AuthorID, &n.TechnicalEvaluation, &n.CommunicationSkills, &n.MotivationFit,
			&n.OverallRecommendation, &n.TechnicalScore, &n.CommunicationScore, &n.MotivationScore, &n.OverallScore, &n.Strengths,
			&n.Weaknesses, &n.AdditionalComments, &n.Complete, &n.Draft, &n.CreatedAt); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan interview note", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *InterviewRepository) ListByCandidature(ctx context.Context, candidatureID common.UUID) ([]interview.Interview, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+interviewColumns+` FROM entretiens e WHERE e.candidature_id = $1 ORDER BY e.date_programmee, e.heure_programmee`, candidatureID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list interviews", err)
	}
	defer rows.Close()
	items := []interview.Interview{}
	for rows.Next() {
		var iv interview.Interview
		if err := rows.Scan(interviewDest(&iv)...); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan interview", err)
		}
		items = append(items, iv)
	}
	return items, rows.Err()
}
