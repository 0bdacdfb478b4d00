package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"admissions/internal/common"
	"admissions/internal/domain/program"
)

const programColumns = `id, code, nom, description, departement, diplome, duree, moyenne_minimale, documents_requis, frais_candidature,
	capacite, inscriptions_actuelles, est_actif, date_limite_candidature, cree_a, modifie_a`

func scanProgram(row rowScanner) (*program.Program, error) {
	var p program.Program
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Department, &p.Degree, &p.DurationMonths, &p.MinimumAverage,
		pq.Array(&p.RequiredDocuments), &p.ApplicationFee, &p.Capacity, &p.Enrolled, &p.Active, &p.Deadline, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

type ProgramRepository struct {
	db *sql.DB
}

func NewProgramRepository(db *sql.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

func (r *ProgramRepository) Create(ctx context.Context, p *program.Program) error {
	now := time.Now().UTC()
	if p.ID.IsZero() {
		p.ID = common.NewUUID()
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `INSERT INTO programmes (`+programColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		p.ID, p.Code, p.Name, p.Description, p.Department, p.Degree, p.DurationMonths, p.MinimumAverage,
		pq.Array(nonNil(p.RequiredDocuments)), p.ApplicationFee, p.Capacity, p.Enrolled, p.Active, p.Deadline, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return wrapError(err, "create program")
	}
	return nil
}

func (r *ProgramRepository) GetByID(ctx context.Context, id common.UUID) (*program.Program, error) {
	p, err := scanProgram(r.db.QueryRowContext(ctx, `SELECT `+programColumns+` FROM programmes WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "program", "load program")
	}
	return p, nil
}

func (r *ProgramRepository) GetByCode(ctx context.Context, code string) (*program.Program, error) {
	p, err := scanProgram(r.db.QueryRowContext(ctx, `SELECT `+programColumns+` FROM programmes WHERE code = $1`, program.NormalizeCode(code)))
	if err != nil {
		return nil, notFoundOr(err, "program", "load program")
	}
	return p, nil
}

func (r *ProgramRepository) List(ctx context.Context, filter program.Filter) ([]program.Program, error) {
	w := &where{}
	if filter.Active != nil {
		w.and("est_actif = " + w.arg(*filter.Active))
	}
	if filter.Department != "" {
		w.equalFold("departement", filter.Department)
	}
	if filter.Degree != "" {
		w.equalFold("diplome", filter.Degree)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+programColumns+` FROM programmes`+w.String()+` ORDER BY nom`, w.args...)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list programs", err)
	}
	defer rows.Close()
	var items []program.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan program", err)
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

func (r *ProgramRepository) Update(ctx context.Context, p *program.Program) error {
	p.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `UPDATE programmes SET nom = $1, description = $2, departement = $3, diplome = $4, duree = $5, moyenne_minimale = $6,
		documents_requis = $7, frais_candidature = $8, capacite = $9, inscriptions_actuelles = $10, est_actif = $11, date_limite_candidature = $12, modifie_a = $13
		WHERE id = $14`,
		p.Name, p.Description, p.Department, p.Degree, p.DurationMonths, p.MinimumAverage, pq.Array(nonNil(p.RequiredDocuments)),
		p.ApplicationFee, p.Capacity, p.Enrolled, p.Active, p.Deadline, p.UpdatedAt, p.ID)
	if err != nil {
		return wrapError(err, "update program")
	}
	return expectAffected(result, "program")
}

func (r *ProgramRepository) DeleteByCode(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM programmes WHERE code = $1`, program.NormalizeCode(code))
	if err != nil {
		return wrapError(err, "delete program")
	}
	return expectAffected(result, "program")
}
