package user

import (
	"strings"
	"time"

	"admissions/internal/common"
)

type Role string

const (
	RoleCandidate   Role = "CANDIDAT"
	RoleCoordinator Role = "COORDINATEUR"
	RoleExaminer    Role = "EXAMINATEUR"
	RoleAdmin       Role = "ADMINISTRATEUR"
)

func (r Role) IsKnown() bool {
	switch r {
	case RoleCandidate, RoleCoordinator, RoleExaminer, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) IsStaff() bool {
	return r == RoleCoordinator || r == RoleAdmin
}

func NormalizeRole(value string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(value)))
}

type Status string

const (
	StatusPending  Status = "EN_ATTENTE"
	StatusActive   Status = "ACTIF"
	StatusInactive Status = "INACTIF"
)

func (s Status) IsKnown() bool {
	return s == StatusPending || s == StatusActive || s == StatusInactive
}

type User struct {
	ID            common.UUID `json:"id"`
	Email         string      `json:"email"`
	PasswordHash  string      `json:"-"`
	FirstName     string      `json:"prenom"`
	LastName      string      `json:"nom"`
	Phone         string      `json:"telephone,omitempty"`
	Role          Role        `json:"role"`
	Status        Status      `json:"statut"`
	EmailVerified bool        `json:"emailVerifie"`
	LastLoginAt   *time.Time  `json:"derniereConnexion,omitempty"`
	CreatedAt     time.Time   `json:"creeA"`
	UpdatedAt     time.Time   `json:"modifieA"`

	VerificationTokenHash string     `json:"-"`
	ResetTokenHash        string     `json:"-"`
	ResetTokenExpiresAt   *time.Time `json:"-"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type CandidateProfile struct {
	UserID      common.UUID `json:"utilisateurId"`
	BirthDate   *time.Time  `json:"dateNaissance,omitempty"`
	Gender      string      `json:"genre,omitempty"`
	Nationality string      `json:"nationalite,omitempty"`
	Address     string      `json:"adresse,omitempty"`
	City        string      `json:"ville,omitempty"`
	Province    string      `json:"province,omitempty"`
	Country     string      `json:"pays,omitempty"`
	NationalID  string      `json:"numeroCIN,omitempty"`
}

type CoordinatorProfile struct {
	UserID           common.UUID   `json:"utilisateurId"`
	Department       string        `json:"departement,omitempty"`
	Specializations  []string      `json:"specialisation"`
	AssignedPrograms []common.UUID `json:"programmesAssignes"`
}

type ExaminerProfile struct {
	UserID              common.UUID `json:"utilisateurId"`
	Title               string      `json:"titre,omitempty"`
	Department          string      `json:"departement,omitempty"`
	Specializations     []string    `json:"specialisation"`
	MaxInterviewsPerDay int         `json:"maxEntretiensParJour"`
}

type AdminProfile struct {
	UserID     common.UUID `json:"utilisateurId"`
	Department string      `json:"departement"`
}

const (
	DefaultCountry             = "Maroc"
	DefaultAdminDepartment     = "Administration"
	DefaultMaxInterviewsPerDay = 4
)

// Account is a user with the profile matching its role. Exactly one of the
// profile pointers is set.
type Account struct {
	User
	Candidate   *CandidateProfile   `json:"profilCandidat,omitempty"`
	Coordinator *CoordinatorProfile `json:"profilCoordinateur,omitempty"`
	Examiner    *ExaminerProfile    `json:"profilExaminateur,omitempty"`
	Admin       *AdminProfile       `json:"profilAdministrateur,omitempty"`
}
