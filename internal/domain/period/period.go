package period

import (
	"context"
	"time"

	"admissions/internal/common"
)

type Status string

const (
	StatusUpcoming Status = "A_VENIR"
	StatusActive   Status = "ACTIVE"
	StatusClosed   Status = "FERMEE"
)

func (s Status) IsKnown() bool {
	return s == StatusUpcoming || s == StatusActive || s == StatusClosed
}

type Semester string

const (
	SemesterAutumn Semester = "AUTOMNE"
	SemesterSpring Semester = "PRINTEMPS"
	SemesterSummer Semester = "ETE"
)

func (s Semester) IsKnown() bool {
	return s == SemesterAutumn || s == SemesterSpring || s == SemesterSummer
}

type Period struct {
	ID                common.UUID   `json:"id"`
	Name              string        `json:"nom"`
	Year              int           `json:"annee"`
	Semester          Semester      `json:"semestre"`
	StartDate         time.Time     `json:"dateDebut"`
	EndDate           time.Time     `json:"dateFin"`
	ApplicationCutoff time.Time     `json:"dateLimiteCandidature"`
	DecisionDate      *time.Time    `json:"dateDecision,omitempty"`
	Status            Status        `json:"statut"`
	ProgramIDs        []common.UUID `json:"programmeIds"`
	CreatedAt         time.Time     `json:"creeA"`
	UpdatedAt         time.Time     `json:"modifieA"`
}

// AcceptsApplications reports whether candidates may still apply at now.
func (p Period) AcceptsApplications(now time.Time) bool {
	return p.Status == StatusActive && !now.Before(p.StartDate) && !now.After(p.ApplicationCutoff)
}

type Summary struct {
	Period
	Candidatures int `json:"nombreCandidatures"`
	Accepted     int `json:"nombreAcceptes"`
	Rejected     int `json:"nombreRejetes"`
}

type Repository interface {
	Create(ctx context.Context, p *Period) error
	GetByID(ctx context.Context, id common.UUID) (*Period, error)
	GetSummary(ctx context.Context, id common.UUID) (*Summary, error)
	List(ctx context.Context) ([]Summary, error)
	ListActive(ctx context.Context, now time.Time) ([]Period, error)
	Update(ctx context.Context, p *Period) error
	Delete(ctx context.Context, id common.UUID) error
}
