package program

import (
	"context"
	"strings"
	"time"

	"admissions/internal/common"
)

type Program struct {
	ID                common.UUID `json:"id"`
	Code              string      `json:"code"`
	Name              string      `json:"nom"`
	Description       string      `json:"description,omitempty"`
	Department        string      `json:"departement"`
	Degree            string      `json:"diplome"`
	DurationMonths    int         `json:"duree"`
	MinimumAverage    float64     `json:"moyenneMinimale"`
	RequiredDocuments []string    `json:"documentsRequis"`
	ApplicationFee    float64     `json:"fraisCandidature"`
	Capacity          int         `json:"capacite"`
	Enrolled          int         `json:"inscriptionsActuelles"`
	Active            bool        `json:"estActif"`
	Deadline          *time.Time  `json:"dateLimiteCandidature,omitempty"`
	CreatedAt         time.Time   `json:"creeA"`
	UpdatedAt         time.Time   `json:"modifieA"`
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type Filter struct {
	Active     *bool
	Department string
	Degree     string
}

type Repository interface {
	Create(ctx context.Context, p *Program) error
	GetByID(ctx context.Context, id common.UUID) (*Program, error)
	GetByCode(ctx context.Context, code string) (*Program, error)
	List(ctx context.Context, filter Filter) ([]Program, error)
	Update(ctx context.Context, p *Program) error
	DeleteByCode(ctx context.Context, code string) error
}
