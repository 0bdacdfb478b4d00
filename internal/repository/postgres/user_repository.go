package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"admissions/internal/common"
	"admissions/internal/domain/user"
)

const userColumns = `u.id, u.email, u.mot_de_passe, u.prenom, u.nom, u.telephone, u.role, u.statut, u.email_verifie,
	u.derniere_connexion, u.verification_token_hash, u.reset_token_hash, u.reset_token_expires_at, u.cree_a, u.modifie_a`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	var verification, reset sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Role, &u.Status, &u.EmailVerified,
		&u.LastLoginAt, &verification, &reset, &u.ResetTokenExpiresAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.VerificationTokenHash = verification.String
	u.ResetTokenHash = reset.String
	return &u, nil
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user and the profile matching its role together.
func (r *UserRepository) Create(ctx context.Context, account *user.Account) error {
	now := time.Now().UTC()
	if account.ID.IsZero() {
		account.ID = common.NewUUID()
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		u := account.User
		_, err := tx.ExecContext(ctx, `INSERT INTO users (id, email, mot_de_passe, prenom, nom, telephone, role, statut, email_verifie,
			verification_token_hash, reset_token_hash, reset_token_expires_at, cree_a, modifie_a)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Role, u.Status, u.EmailVerified,
			nullString(u.VerificationTokenHash), nullString(u.ResetTokenHash), u.ResetTokenExpiresAt, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return wrapError(err, "create user")
		}
		switch {
		case account.Candidate != nil:
			account.Candidate.UserID = u.ID
			return upsertCandidateProfile(ctx, tx, *account.Candidate)
		case account.Coordinator != nil:
			account.Coordinator.UserID = u.ID
			return upsertCoordinatorProfile(ctx, tx, *account.Coordinator)
		case account.Examiner != nil:
			account.Examiner.UserID = u.ID
			return upsertExaminerProfile(ctx, tx, *account.Examiner)
		case account.Admin != nil:
			account.Admin.UserID = u.ID
			return upsertAdminProfile(ctx, tx, *account.Admin)
		}
		return nil
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id common.UUID) (*user.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "user", "load user")
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = LOWER($1)`, email))
	if err != nil {
		return nil, notFoundOr(err, "user", "load user")
	}
	return u, nil
}

func (r *UserRepository) GetByVerificationToken(ctx context.Context, tokenHash string) (*user.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.verification_token_hash = $1`, tokenHash))
	if err != nil {
		return nil, notFoundOr(err, "verification token", "load user")
	}
	return u, nil
}

func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string) (*user.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.reset_token_hash = $1`, tokenHash))
	if err != nil {
		return nil, notFoundOr(err, "reset token", "load user")
	}
	return u, nil
}

func (r *UserRepository) GetAccount(ctx context.Context, id common.UUID) (*user.Account, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	account := &user.Account{User: *u}
	switch u.Role {
	case user.RoleCandidate:
		profile := user.CandidateProfile{UserID: id, Country: user.DefaultCountry}
		err = r.db.QueryRowContext(ctx, `SELECT date_naissance, genre, nationalite, adresse, ville, province, pays, numero_cin
			FROM candidate_profiles WHERE utilisateur_id = $1`, id).
			Scan(&profile.BirthDate, &profile.Gender, &profile.Nationality, &profile.Address, &profile.City, &profile.Province, &profile.Country, &profile.NationalID)
		account.Candidate = &profile
	case user.RoleCoordinator:
		profile := user.CoordinatorProfile{UserID: id}
		err = r.db.QueryRowContext(ctx, `SELECT departement, specialisation FROM coordinator_profiles WHERE utilisateur_id = $1`, id).
			Scan(&profile.Department, pq.Array(&profile.Specializations))
		if err == nil || errors.Is(err, sql.ErrNoRows) {
			programs, listErr := r.AssignedPrograms(ctx, id)
			if listErr != nil {
				return nil, listErr
			}
			profile.AssignedPrograms = programs
		}
		account.Coordinator = &profile
	case user.RoleExaminer:
		profile := user.ExaminerProfile{UserID: id, MaxInterviewsPerDay: user.DefaultMaxInterviewsPerDay}
		err = r.db.QueryRowContext(ctx, `SELECT titre, departement, specialisation, max_entretiens_par_jour FROM examiner_profiles WHERE utilisateur_id = $1`, id).
			Scan(&profile.Title, &profile.Department, pq.Array(&profile.Specializations), &profile.MaxInterviewsPerDay)
		account.Examiner = &profile
	case user.RoleAdmin:
		profile := user.AdminProfile{UserID: id, Department: user.DefaultAdminDepartment}
		err = r.db.QueryRowContext(ctx, `SELECT departement FROM admin_profiles WHERE utilisateur_id = $1`, id).Scan(&profile.Department)
		account.Admin = &profile
	}
	// A missing profile row is reported with defaults.
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewError(common.CodeInternal, "failed to load profile", err)
	}
	return account, nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	u.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `UPDATE users SET email = $1, mot_de_passe = $2, prenom = $3, nom = $4, telephone = $5, role = $6, statut = $7,
		email_verifie = $8, derniere_connexion = $9, verification_token_hash = $10, reset_token_hash = $11, reset_token_expires_at = $12, modifie_a = $13
		WHERE id = $14`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Role, u.Status, u.EmailVerified, u.LastLoginAt,
		nullString(u.VerificationTokenHash), nullString(u.ResetTokenHash), u.ResetTokenExpiresAt, u.UpdatedAt, u.ID)
	if err != nil {
		return wrapError(err, "update user")
	}
	return expectAffected(result, "user")
}

func (r *UserRepository) Delete(ctx context.Context, id common.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrapError(err, "delete user")
	}
	return expectAffected(result, "user")
}

func (r *UserRepository) List(ctx context.Context, filter user.Filter) ([]user.User, int, error) {
	w := &where{}
	if filter.Role != "" {
		w.and("u.role = " + w.arg(filter.Role))
	}
	if filter.Status != "" {
		w.and("u.statut = " + w.arg(filter.Status))
	}
	if filter.Search != "" {
		w.contains(filter.Search, "u.prenom", "u.nom", "u.email")
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, common.NewError(common.CodeInternal, "failed to count users", err)
	}
	query := `SELECT ` + userColumns + ` FROM users u` + w.String() + ` ORDER BY u.cree_a DESC`
	query += w.paginate(filter.Page, filter.Limit)
	users, err := r.queryUsers(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) ListActiveByRole(ctx context.Context, role user.Role) ([]user.User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users u WHERE u.role = $1 AND u.statut = $2 ORDER BY u.nom, u.prenom`, role, user.StatusActive)
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]user.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list users", err)
	}
	defer rows.Close()
	var items []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan user", err)
		}
		items = append(items, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list users", err)
	}
	return items, nil
}

func (r *UserRepository) UpsertCandidateProfile(ctx context.Context, profile user.CandidateProfile) error {
	return upsertCandidateProfile(ctx, r.db, profile)
}

func (r *UserRepository) UpsertCoordinatorProfile(ctx context.Context, profile user.CoordinatorProfile) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return upsertCoordinatorProfile(ctx, tx, profile)
	})
}

func (r *UserRepository) UpsertExaminerProfile(ctx context.Context, profile user.ExaminerProfile) error {
	return upsertExaminerProfile(ctx, r.db, profile)
}

func (r *UserRepository) UpsertAdminProfile(ctx context.Context, profile user.AdminProfile) error {
	return upsertAdminProfile(ctx, r.db, profile)
}

func (r *UserRepository) IsAssigned(ctx context.Context, coordinatorID, programID common.UUID) (bool, error) {
	var assigned bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM coordinator_programs WHERE coordinateur_id = $1 AND programme_id = $2)`, coordinatorID, programID).Scan(&assigned)
	if err != nil {
		return false, common.NewError(common.CodeInternal, "failed to check program assignment", err)
	}
	return assigned, nil
}

func (r *UserRepository) AssignedPrograms(ctx context.Context, coordinatorID common.UUID) ([]common.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT programme_id FROM coordinator_programs WHERE coordinateur_id = $1 ORDER BY programme_id`, coordinatorID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list assigned programs", err)
	}
	defer rows.Close()
	ids := []common.UUID{}
	for rows.Next() {
		var id common.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan assigned program", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func upsertCandidateProfile(ctx context.Context, q querier, p user.CandidateProfile) error {
	if p.Country == "" {
		p.Country = user.DefaultCountry
	}
	_, err := q.ExecContext(ctx, `INSERT INTO candidate_profiles (utilisateur_id, date_naissance, genre, nationalite, adresse, ville, province, pays, numero_cin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (utilisateur_id) DO UPDATE SET date_naissance = EXCLUDED.date_naissance, genre = EXCLUDED.genre, nationalite = EXCLUDED.nationalite,
			adresse = EXCLUDED.adresse, ville = EXCLUDED.ville, province = EXCLUDED.province, pays = EXCLUDED.pays, numero_cin = EXCLUDED.numero_cin`,
		p.UserID, p.BirthDate, p.Gender, p.Nationality, p.Address, p.City, p.Province, p.Country, p.NationalID)
	if err != nil {
		return wrapError(err, "store candidate profile")
	}
	return nil
}

// upsertCoordinatorProfile also replaces the program assignments. It must run
// inside a transaction.
func upsertCoordinatorProfile(ctx context.Context, tx *sql.Tx, p user.CoordinatorProfile) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO coordinator_profiles (utilisateur_id, departement, specialisation)
		VALUES ($1, $2, $3)
		ON CONFLICT (utilisateur_id) DO UPDATE SET departement = EXCLUDED.departement, specialisation = EXCLUDED.specialisation`,
		p.UserID, p.Department, pq.Array(nonNil(p.Specializations)))
	if err != nil {
		return wrapError(err, "store coordinator profile")
	}
	if p.AssignedPrograms == nil {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM coordinator_programs WHERE coordinateur_id = $1`, p.UserID); err != nil {
		return wrapError(err, "clear program assignments")
	}
	for _, programID := range p.AssignedPrograms {
		if _, err := tx.ExecContext(ctx, `INSERT INTO coordinator_programs (coordinateur_id, programme_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, p.UserID, programID); err != nil {
			return wrapError(err, "assign program")
		}
	}
	return nil
}

func upsertExaminerProfile(ctx context.Context, q querier, p user.ExaminerProfile) error {
	if p.MaxInterviewsPerDay <= 0 {
		p.MaxInterviewsPerDay = user.DefaultMaxInterviewsPerDay
	}
	_, err := q.ExecContext(ctx, `INSERT INTO examiner_profiles (utilisateur_id, titre, departement, specialisation, max_entretiens_par_jour)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (utilisateur_id) DO UPDATE SET titre = EXCLUDED.titre, departement = EXCLUDED.departement,
			specialisation = EXCLUDED.specialisation, max_entretiens_par_jour = EXCLUDED.max_entretiens_par_jour`,
		p.UserID, p.Title, p.Department, pq.Array(nonNil(p.Specializations)), p.MaxInterviewsPerDay)
	if err != nil {
		return wrapError(err, "store examiner profile")
	}
	return nil
}

func upsertAdminProfile(ctx context.Context, q querier, p user.AdminProfile) error {
	if p.Department == "" {
		p.Department = user.DefaultAdminDepartment
	}
	_, err := q.ExecContext(ctx, `INSERT INTO admin_profiles (utilisateur_id, departement) VALUES ($1, $2)
		ON CONFLICT (utilisateur_id) DO UPDATE SET departement = EXCLUDED.departement`, p.UserID, p.Department)
	if err != nil {
		return wrapError(err, "store admin profile")
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
