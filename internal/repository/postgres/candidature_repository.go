package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"admissions/internal/common"
	"admissions/internal/domain/candidature"
)

const candidatureColumns = `c.id, c.numero_candidature, c.candidat_id, c.programme_id, c.periode_id, c.statut, c.priorite, c.progression,
	c.statement, c.decision, c.raison_decision, c.soumise_a, c.date_limite, c.cree_a, c.modifie_a`

const summaryJoins = ` FROM candidatures c
	JOIN users u ON u.id = c.candidat_id
	JOIN programmes p ON p.id = c.programme_id
	JOIN periodes pe ON pe.id = c.periode_id`

func candidatureDest(c *candidature.Candidature) []any {
	return []any{&c.ID, &c.Number, &c.CandidateID, &c.ProgramID, &c.PeriodID, &c.Status, &c.Priority, &c.Progress,
		&c.Statement, &c.Decision, &c.DecisionReason, &c.SubmittedAt, &c.Deadline, &c.CreatedAt, &c.UpdatedAt}
}

func scanSummary(row rowScanner) (*candidature.Summary, error) {
	var s candidature.Summary
	dest := append(candidatureDest(&s.Candidature), &s.CandidateFirstName, &s.CandidateLastName, &s.CandidateEmail, &s.ProgramName, &s.ProgramCode, &s.PeriodName)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &s, nil
}

type CandidatureRepository struct {
	db *sql.DB
}

func NewCandidatureRepository(db *sql.DB) *CandidatureRepository {
	return &CandidatureRepository{db: db}
}

func (r *CandidatureRepository) GetByID(ctx context.Context, id common.UUID) (*candidature.Candidature, error) {
	return getCandidature(ctx, r.db, id, false)
}

func getCandidature(ctx context.Context, q querier, id common.UUID, lock bool) (*candidature.Candidature, error) {
	query := `SELECT ` + candidatureColumns + ` FROM candidatures c WHERE c.id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var c candidature.Candidature
	if err := q.QueryRowContext(ctx, query, id).Scan(candidatureDest(&c)...); err != nil {
		return nil, notFoundOr(err, "candidature", "load candidature")
	}
	return &c, nil
}

func (r *CandidatureRepository) List(ctx context.Context, filter candidature.Filter) ([]candidature.Summary, int, error) {
	w := &where{}
	if filter.Status != "" {
		w.and("c.statut = " + w.arg(filter.Status))
	}
	if !filter.ProgramID.IsZero() {
		w.and("c.programme_id = " + w.arg(filter.ProgramID))
	}
	if !filter.PeriodID.IsZero() {
		w.and("c.periode_id = " + w.arg(filter.PeriodID))
	}
	if !filter.CandidateID.IsZero() {
		w.and("c.candidat_id = " + w.arg(filter.CandidateID))
	}
	if filter.OnlyPrograms {
		w.and("c.programme_id = ANY(" + w.arg(uuidArray(filter.ProgramIDs)) + "::uuid[])")
	}
	if filter.Search != "" {
		w.contains(filter.Search, "c.numero_candidature", "u.prenom", "u.nom", "u.email")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+summaryJoins+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, common.NewError(common.CodeInternal, "failed to count candidatures", err)
	}
	query := `SELECT ` + candidatureColumns + `, u.prenom, u.nom, u.email, p.nom, p.code, pe.nom` + summaryJoins + w.String() +
		` ORDER BY c.soumise_a DESC NULLS LAST, c.cree_a DESC`
	query += w.paginate(filter.Page, filter.Limit)
	items, err := r.querySummaries(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *CandidatureRepository) ListByCandidate(ctx context.Context, candidateID common.UUID) ([]candidature.Summary, error) {
	return r.querySummaries(ctx, `SELECT `+candidatureColumns+`, u.prenom, u.nom, u.email, p.nom, p.code, pe.nom`+summaryJoins+`
		WHERE c.candidat_id = $1 ORDER BY c.cree_a DESC`, candidateID)
}

func (r *CandidatureRepository) querySummaries(ctx context.Context, query string, args ...any) ([]candidature.Summary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list candidatures", err)
	}
	defer rows.Close()
	items := []candidature.Summary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan candidature", err)
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

func (r *CandidatureRepository) HasOpen(ctx context.Context, candidateID common.UUID, statuses []candidature.Status, now time.Time) (bool, error) {
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM candidatures c JOIN periodes pe ON pe.id = c.periode_id
		WHERE c.candidat_id = $1 AND c.statut = ANY($2) AND pe.statut = 'ACTIVE' AND pe.date_debut <= $3 AND pe.date_limite_candidature >= $3)`,
		candidateID, pq.Array(values), now).Scan(&exists)
	if err != nil {
		return false, common.NewError(common.CodeInternal, "failed to check open candidatures", err)
	}
	return exists, nil
}

const recordColumns = `id, candidature_id, nom_etablissement, type_etablissement, ville, pays, type_diplome, domaine_etude, specialite, mention,
	moyenne, echelle_moyenne, date_debut, date_fin, date_obtention_diplome, est_termine, semestres, cree_a`

func scanRecord(row rowScanner) (*candidature.AcademicRecord, error) {
	var rec candidature.AcademicRecord
	var semesters []byte
	if err := row.Scan(&rec.ID, &rec.CandidatureID, &rec.Institution, &rec.InstitutionType, &rec.City, &rec.Country, &rec.DegreeType,
		&rec.FieldOfStudy, &rec.Specialty, &rec.Honors, &rec.Average, &rec.Scale, &rec.StartDate, &rec.EndDate, &rec.GraduationDate,
		&rec.Completed, &semesters, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if len(semesters) > 0 {
		if err := json.Unmarshal(semesters, &rec.Semesters); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func (r *CandidatureRepository) ListRecords(ctx context.Context, candidatureID common.UUID) ([]candidature.AcademicRecord, error) {
	return listRecords(ctx, r.db, candidatureID)
}

func listRecords(ctx context.Context, q querier, candidatureID common.UUID) ([]candidature.AcademicRecord, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+recordColumns+` FROM dossiers_academiques WHERE candidature_id = $1 ORDER BY cree_a`, candidatureID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list academic records", err)
	}
	defer rows.Close()
	items := []candidature.AcademicRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan academic record", err)
		}
		items = append(items, *rec)
	}
	return items, rows.Err()
}

func (r *CandidatureRepository) ListReferences(ctx context.Context, candidatureID common.UUID) ([]candidature.Reference, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, candidature_id, nom, organisation, relation, email, telephone
		FROM candidature_references WHERE candidature_id = $1 ORDER BY nom`, candidatureID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list references", err)
	}
	defer rows.Close()
	items := []candidature.Reference{}
	for rows.Next() {
		var ref candidature.Reference
		if err := rows.Scan(&ref.ID, &ref.CandidatureID, &ref.Name, &ref.Organization, &ref.Relation, &ref.Email, &ref.Phone); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan reference", err)
		}
		items = append(items, ref)
	}
	return items, rows.Err()
}

func (r *CandidatureRepository) ListEvents(ctx context.Context, candidatureID common.UUID) ([]candidature.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, candidature_id, evenement, description, acteur_id, statut, metadonnees, cree_a
		FROM chronologie WHERE candidature_id = $1 ORDER BY cree_a DESC`, candidatureID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list chronology", err)
	}
	defer rows.Close()
	items := []candidature.Event{}
	for rows.Next() {
		var event candidature.Event
		var metadata []byte
		if err := rows.Scan(&event.ID, &event.CandidatureID, &event.Kind, &event.Description, &event.ActorID, &event.Status, &metadata, &event.CreatedAt); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan chronology", err)
		}
		if event.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to decode chronology metadata", err)
		}
		items = append(items, event)
	}
	return items, rows.Err()
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func (r *CandidatureRepository) ListNotes(ctx context.Context, candidatureID common.UUID) ([]candidature.Note, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, candidature_id, contenu, type, auteur_id, auteur_nom, auteur_role, cree_a
		FROM notes_candidature WHERE candidature_id = $1 ORDER BY cree_a DESC`, candidatureID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list notes", err)
	}
	defer rows.Close()
	items := []candidature.Note{}
	for rows.Next() {
		var note candidature.Note
		if err := rows.Scan(&note.ID, &note.CandidatureID, &note.Content, &note.Type, &note.AuthorID, &note.AuthorName, &note.AuthorRole, &note.CreatedAt); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan note", err)
		}
		items = append(items, note)
	}
	return items, rows.Err()
}

// WithinTx runs fn in one database transaction. Any error from fn rolls back
// every write made through the Tx.
func (r *CandidatureRepository) WithinTx(ctx context.Context, fn func(tx candidature.Tx) error) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&candidatureTx{tx: tx})
	})
}
