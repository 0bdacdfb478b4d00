package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"admissions/internal/common"
	"admissions/internal/domain/candidature"
	"admissions/internal/domain/document"
	"admissions/internal/domain/user"
)

type candidatureTx struct {
	tx *sql.Tx
}

func (t *candidatureTx) GetForUpdate(ctx context.Context, id common.UUID) (*candidature.Candidature, error) {
	return getCandidature(ctx, t.tx, id, true)
}

func (t *candidatureTx) Create(ctx context.Context, c *candidature.Candidature) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO candidatures (id, numero_candidature, candidat_id, programme_id, periode_id, statut, priorite, progression,
		statement, decision, raison_decision, soumise_a, date_limite, cree_a, modifie_a)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.Number, c.CandidateID, c.ProgramID, c.PeriodID, c.Status, c.Priority, c.Progress,
		c.Statement, c.Decision, c.DecisionReason, c.SubmittedAt, c.Deadline, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return wrapError(err, "create candidature")
	}
	return nil
}

func (t *candidatureTx) Update(ctx context.Context, c *candidature.Candidature) error {
	result, err := t.tx.ExecContext(ctx, `UPDATE candidatures SET statut = $1, priorite = $2, progression = $3, statement = $4, decision = $5,
		raison_decision = $6, soumise_a = $7, date_limite = $8, modifie_a = $9 WHERE id = $10`,
		c.Status, c.Priority, c.Progress, c.Statement, c.Decision, c.DecisionReason, c.SubmittedAt, c.Deadline, c.UpdatedAt, c.ID)
	if err != nil {
		return wrapError(err, "update candidature")
	}
	return expectAffected(result, "candidature")
}

// NextNumber reserves the next sequence value for year. The counter row stays
// locked until the transaction ends, so concurrent creates serialise here.
func (t *candidatureTx) NextNumber(ctx context.Context, year int) (int, error) {
	var next int
	err := t.tx.QueryRowContext(ctx, `INSERT INTO reference_counters (annee, dernier) VALUES ($1, 1)
		ON CONFLICT (annee) DO UPDATE SET dernier = reference_counters.dernier + 1
		RETURNING dernier`, year).Scan(&next)
	if err != nil {
		return 0, wrapError(err, "reserve candidature number")
	}
	return next, nil
}

func (t *candidatureTx) AppendEvent(ctx context.Context, event candidature.Event) error {
	var metadata any
	if len(event.Metadata) > 0 {
		encoded, err := json.Marshal(event.Metadata)
		if err != nil {
			return common.NewError(common.CodeInternal, "failed to encode event metadata", err)
		}
		metadata = string(encoded)
	}
	_, err := t.tx.ExecContext(ctx, `INSERT INTO chronologie (id, candidature_id, evenement, description, acteur_id, statut, metadonnees, cree_a)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.CandidatureID, event.Kind, event.Description, event.ActorID, event.Status, metadata, event.CreatedAt)
	if err != nil {
		return wrapError(err, "append chronology")
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}

// GetCandidate holds a share lock on the user row so profile edits wait for
// the transaction.
func (t *candidatureTx) GetCandidate(ctx context.Context, userID common.UUID) (*user.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1 FOR SHARE`, userID))
	if err != nil {
		return nil, notFoundOr(err, "candidate", "load candidate")
	}
	return u, nil
}

// ListDocuments returns the candidature's documents without their
// verification history.
func (t *candidatureTx) ListDocuments(ctx context.Context, candidatureID common.UUID) ([]document.Document, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents d WHERE d.candidature_id = $1 ORDER BY d.cree_a`, candidatureID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list documents", err)
	}
	defer rows.Close()
	items := []document.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan document", err)
		}
		items = append(items, *d)
	}
	return items, rows.Err()
}

func (t *candidatureTx) ListRecords(ctx context.Context, candidatureID common.UUID) ([]candidature.AcademicRecord, error) {
	return listRecords(ctx, t.tx, candidatureID)
}

// UpdateCandidate writes only the non-nil fields of both patches.
func (t *candidatureTx) UpdateCandidate(ctx context.Context, userID common.UUID, identity user.IdentityPatch, profile user.CandidateProfilePatch) error {
	if !identity.IsEmpty() {
		email := trimmed(identity.Email)
		if email != nil {
			lowered := strings.ToLower(*email)
			email = &lowered
		}
		result, err := t.tx.ExecContext(ctx, `UPDATE users SET prenom = COALESCE($1, prenom), nom = COALESCE($2, nom), email = COALESCE($3, email),
			telephone = COALESCE($4, telephone), modifie_a = $5 WHERE id = $6`,
			trimmed(identity.FirstName), trimmed(identity.LastName), email, trimmed(identity.Phone), time.Now().UTC(), userID)
		if err != nil {
			return wrapError(err, "update candidate")
		}
		if err := expectAffected(result, "candidate"); err != nil {
			return err
		}
	}
	if profile.IsEmpty() {
		return nil
	}
	var birthDate *time.Time
	if profile.BirthDate != nil {
		value := profile.BirthDate.UTC()
		birthDate = &value
	}
	_, err := t.tx.ExecContext(ctx, `INSERT INTO candidate_profiles (utilisateur_id, date_naissance, genre, nationalite, adresse, ville, province, pays, numero_cin)
		VALUES ($1, $2, COALESCE($3, ''), COALESCE($4, ''), COALESCE($5, ''), COALESCE($6, ''), COALESCE($7, ''), COALESCE($8, 'Maroc'), COALESCE($9, ''))
		ON CONFLICT (utilisateur_id) DO UPDATE SET
			date_naissance = COALESCE($2, candidate_profiles.date_naissance),
			genre = COALESCE($3, candidate_profiles.genre),
			nationalite = COALESCE($4, candidate_profiles.nationalite),
			adresse = COALESCE($5, candidate_profiles.adresse),
			ville = COALESCE($6, candidate_profiles.ville),
			province = COALESCE($7, candidate_profiles.province),
			pays = COALESCE($8, candidate_profiles.pays),
			numero_cin = COALESCE($9, candidate_profiles.numero_cin)`,
		userID, birthDate, trimmed(profile.Gender), trimmed(profile.Nationality), trimmed(profile.Address), trimmed(profile.City),
		trimmed(profile.Province), trimmed(profile.Country), trimmed(profile.NationalID))
	if err != nil {
		return wrapError(err, "update candidate profile")
	}
	return nil
}

func (t *candidatureTx) GetRecord(ctx context.Context, candidatureID, recordID common.UUID) (*candidature.AcademicRecord, error) {
	rec, err := scanRecord(t.tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM dossiers_academiques WHERE id = $1 AND candidature_id = $2`, recordID, candidatureID))
	if err != nil {
		return nil, notFoundOr(err, "academic record", "load academic record")
	}
	return rec, nil
}

func (t *candidatureTx) SaveRecord(ctx context.Context, rec *candidature.AcademicRecord) error {
	semesters, err := json.Marshal(semestersOrEmpty(rec.Semesters))
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to encode semesters", err)
	}
	_, err = t.tx.ExecContext(ctx, `INSERT INTO dossiers_academiques (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET nom_etablissement = EXCLUDED.nom_etablissement, type_etablissement = EXCLUDED.type_etablissement,
			ville = EXCLUDED.ville, pays = EXCLUDED.pays, type_diplome = EXCLUDED.type_diplome, domaine_etude = EXCLUDED.domaine_etude,
			specialite = EXCLUDED.specialite, mention = EXCLUDED.mention, moyenne = EXCLUDED.moyenne, echelle_moyenne = EXCLUDED.echelle_moyenne,
			date_debut = EXCLUDED.date_debut, date_fin = EXCLUDED.date_fin, date_obtention_diplome = EXCLUDED.date_obtention_diplome,
			est_termine = EXCLUDED.est_termine, semestres = EXCLUDED.semestres
		WHERE dossiers_academiques.candidature_id = EXCLUDED.candidature_id`,
		rec.ID, rec.CandidatureID, rec.Institution, rec.InstitutionType, rec.City, rec.Country, rec.DegreeType, rec.FieldOfStudy,
		rec.Specialty, rec.Honors, rec.Average, rec.Scale, rec.StartDate, rec.EndDate, rec.GraduationDate, rec.Completed,
		string(semesters), rec.CreatedAt)
	if err != nil {
		return wrapError(err, "store academic record")
	}
	return nil
}

func semestersOrEmpty(values []candidature.Semester) []candidature.Semester {
	if values == nil {
		return []candidature.Semester{}
	}
	return values
}

func (t *candidatureTx) DeleteRecord(ctx context.Context, candidatureID, recordID common.UUID) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM dossiers_academiques WHERE id = $1 AND candidature_id = $2`, recordID, candidatureID)
	if err != nil {
		return wrapError(err, "delete academic record")
	}
	return expectAffected(result, "academic record")
}

func (t *candidatureTx) ReplaceRecords(ctx context.Context, candidatureID common.UUID, records []candidature.AcademicRecord) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM dossiers_academiques WHERE candidature_id = $1`, candidatureID); err != nil {
		return wrapError(err, "clear academic records")
	}
	for i := range records {
		records[i].CandidatureID = candidatureID
		if err := t.SaveRecord(ctx, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *candidatureTx) ReplaceReferences(ctx context.Context, candidatureID common.UUID, references []candidature.Reference) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM candidature_references WHERE candidature_id = $1`, candidatureID); err != nil {
		return wrapError(err, "clear references")
	}
	for _, ref := range references {
		_, err := t.tx.ExecContext(ctx, `INSERT INTO candidature_references (id, candidature_id, nom, organisation, relation, email, telephone)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ref.ID, candidatureID, ref.Name, ref.Organization, ref.Relation, ref.Email, ref.Phone)
		if err != nil {
			return wrapError(err, "store reference")
		}
	}
	return nil
}

func (t *candidatureTx) CreateDocument(ctx context.Context, doc *document.Document) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO documents (id, candidature_id, type, titre, description, est_obligatoire, nom_fichier, nom_original,
		url, taille_fichier, type_mime, statut, cree_a, modifie_a)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		doc.ID, doc.CandidatureID, doc.Type, doc.Title, doc.Description, doc.Required, doc.PublicID, doc.OriginalName,
		doc.URL, doc.Size, doc.MIMEType, doc.Status, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return wrapError(err, "create document")
	}
	return nil
}

func (t *candidatureTx) UpdateDocument(ctx context.Context, doc *document.Document) error {
	result, err := t.tx.ExecContext(ctx, `UPDATE documents SET titre = $1, description = $2, est_obligatoire = $3, nom_fichier = $4, nom_original = $5,
		url = $6, taille_fichier = $7, type_mime = $8, statut = $9, modifie_a = $10 WHERE id = $11`,
		doc.Title, doc.Description, doc.Required, doc.PublicID, doc.OriginalName, doc.URL, doc.Size, doc.MIMEType, doc.Status, doc.UpdatedAt, doc.ID)
	if err != nil {
		return wrapError(err, "update document")
	}
	return expectAffected(result, "document")
}

func (t *candidatureTx) DeleteDocument(ctx context.Context, id common.UUID) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return wrapError(err, "delete document")
	}
	return expectAffected(result, "document")
}

func (t *candidatureTx) AddVerification(ctx context.Context, v *document.Verification) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO verifications_documents (id, document_id, verificateur_id, verificateur_nom, verificateur_role, statut, notes, cree_a)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.DocumentID, v.VerifierID, v.VerifierName, v.VerifierRole, v.Status, v.Notes, v.CreatedAt)
	if err != nil {
		return wrapError(err, "store verification")
	}
	return nil
}

func (t *candidatureTx) AddNote(ctx context.Context, note *candidature.Note) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO notes_candidature (id, candidature_id, contenu, type, auteur_id, auteur_nom, auteur_role, cree_a)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		note.ID, note.CandidatureID, note.Content, note.Type, note.AuthorID, note.AuthorName, note.AuthorRole, note.CreatedAt)
	if err != nil {
		return wrapError(err, "store note")
	}
	return nil
}

func (t *candidatureTx) DeleteNote(ctx context.Context, candidatureID, noteID common.UUID) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM notes_candidature WHERE id = $1 AND candidature_id = $2`, noteID, candidatureID)
	if err != nil {
		return wrapError(err, "delete note")
	}
	return expectAffected(result, "note")
}
