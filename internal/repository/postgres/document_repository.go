package postgres

import (
	"context"
	"database/sql"

	"admissions/internal/common"
	"admissions/internal/domain/document"
)

const documentColumns = `d.id, d.candidature_id, d.type, d.titre, d.description, d.est_obligatoire, d.nom_fichier, d.nom_original,
	d.url, d.taille_fichier, d.type_mime, d.statut, d.cree_a, d.modifie_a`

func scanDocument(row rowScanner) (*document.Document, error) {
	var d document.Document
	if err := row.Scan(&d.ID, &d.CandidatureID, &d.Type, &d.Title, &d.Description, &d.Required, &d.PublicID, &d.OriginalName,
		&d.URL, &d.Size, &d.MIMEType, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Verifications = []document.Verification{}
	return &d, nil
}

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) GetByID(ctx context.Context, id common.UUID) (*document.Document, error) {
	d, err := scanDocument(r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents d WHERE d.id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "document", "load document")
	}
	docs := []document.Document{*d}
	if err := r.attachVerifications(ctx, docs); err != nil {
		return nil, err
	}
	return &docs[0], nil
}

func (r *DocumentRepository) GetByType(ctx context.Context, candidatureID common.UUID, docType document.Type) (*document.Document, error) {
	d, err := scanDocument(r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents d WHERE d.candidature_id = $1 AND d.type = $2`, candidatureID, docType))
	if err != nil {
		return nil, notFoundOr(err, "document", "load document")
	}
	return d, nil
}

func (r *DocumentRepository) ListByCandidature(ctx context.Context, candidatureID common.UUID) ([]document.Document, error) {
	return r.query(ctx, `SELECT `+documentColumns+` FROM documents d WHERE d.candidature_id = $1 ORDER BY d.cree_a`, candidatureID)
}

func (r *DocumentRepository) ListAll(ctx context.Context, filter document.Filter) ([]document.Document, error) {
	w := &where{}
	if filter.Year > 0 {
		w.and("pe.annee = " + w.arg(filter.Year))
	}
	if filter.OnlyPrograms {
		w.and("c.programme_id = ANY(" + w.arg(uuidArray(filter.ProgramIDs)) + "::uuid[])")
	}
	return r.query(ctx, `SELECT `+documentColumns+` FROM documents d
		JOIN candidatures c ON c.id = d.candidature_id
		JOIN periodes pe ON pe.id = c.periode_id`+w.String()+` ORDER BY d.cree_a DESC`, w.args...)
}

func (r *DocumentRepository) query(ctx context.Context, query string, args ...any) ([]document.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list documents", err)
	}
	if err := r.attachVerifications(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *DocumentRepository) attachVerifications(ctx context.Context, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}
	index := make(map[common.UUID]int, len(docs))
	ids := make([]common.UUID, len(docs))
	for i, d := range docs {
		index[d.ID] = i
		ids[i] = d.ID
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, document_id, verificateur_id, verificateur_nom, verificateur_role, statut, notes, cree_a
		FROM verifications_documents WHERE document_id = ANY($1::uuid[]) ORDER BY cree_a`, uuidArray(ids))
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to list verifications", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v document.Verification
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.VerifierID, &v.VerifierName, &v.VerifierRole, &v.Status, &v.Notes, &v.CreatedAt); err != nil {
			return common.NewError(common.CodeInternal, "failed to scan verification", err)
		}
		if i, ok := index[v.DocumentID]; ok {
			docs[i].Verifications = append(docs[i].Verifications, v)
		}
	}
	return rows.Err()
}
