package interview

import (
	"context"
	"time"

	"admissions/internal/common"
)

type Status string

const (
	StatusScheduled Status = "PROGRAMME"
	StatusDone      Status = "TERMINE"
	StatusCancelled Status = "ANNULE"
)

func (s Status) IsKnown() bool {
	return s == StatusScheduled || s == StatusDone || s == StatusCancelled
}

type Type string

const (
	TypeTechnical  Type = "TECHNIQUE"
	TypeMotivation Type = "MOTIVATION"
	TypeGeneral    Type = "GENERAL"
)

func (t Type) IsKnown() bool {
	return t == TypeTechnical || t == TypeMotivation || t == TypeGeneral
}

type Format string

const (
	FormatOnSite Format = "PRESENTIEL"
	FormatOnline Format = "EN_LIGNE"
	FormatPhone  Format = "TELEPHONIQUE"
)

func (f Format) IsKnown() bool {
	return f == FormatOnSite || f == FormatOnline || f == FormatPhone
}

type Interview struct {
	ID              common.UUID `json:"id"`
	CandidatureID   common.UUID `json:"candidatureId"`
	ExaminerID      common.UUID `json:"examinateurId"`
	PeriodID        common.UUID `json:"periodeId"`
	Type            Type        `json:"type"`
	Format          Format      `json:"format"`
	Date            time.Time   `json:"dateProgrammee"`
	Time            string      `json:"heureProgrammee"`
	DurationMinutes int         `json:"duree"`
	Location        string      `json:"lieu,omitempty"`
	MeetingLink     string      `json:"lienReunion,omitempty"`
	MeetingID       string      `json:"idReunion,omitempty"`
	MeetingPassword string      `json:"motDePasseReunion,omitempty"`
	Title           string      `json:"titre,omitempty"`
	Description     string      `json:"description,omitempty"`
	Status          Status      `json:"statut"`
	Recommendation  string      `json:"recommandation,omitempty"`
	CreatedAt       time.Time   `json:"creeA"`
	UpdatedAt       time.Time   `json:"modifieA"`
}

// Detail is an interview with the owner of its candidature resolved, which
// the access rules need.
type Detail struct {
	Interview
	CandidateID       common.UUID `json:"candidatId"`
	ProgramID         common.UUID `json:"programmeId"`
	CandidatureNumber string      `json:"numeroCandidature"`
	CandidateName     string      `json:"candidatNom"`
	ExaminerName      string      `json:"examinateurNom"`
	Notes             []Note      `json:"notes,omitempty"`
}

type Note struct {
	ID                    common.UUID `json:"id"`
	InterviewID           common.UUID `json:"entretienId"`
	AuthorID              common.UUID `json:"auteurId"`
	TechnicalEvaluation   string      `json:"evaluationTechnique,omitempty"`
	CommunicationSkills   string      `json:"competencesCommunication,omitempty"`
	MotivationFit         string      `json:"motivationAdequation,omitempty"`
	OverallRecommendation string      `json:"recommandationGlobale,omitempty"`
	TechnicalScore        *int        `json:"noteTechnique,omitempty"`
	CommunicationScore    *int        `json:"noteCommunication,omitempty"`
	MotivationScore       *int        `json:"noteMotivation,omitempty"`
	OverallScore          *int        `json:"noteGlobale,omitempty"`
	Strengths             string      `json:"pointsForts,omitempty"`
	Weaknesses            string      `json:"pointsFaibles,omitempty"`
	AdditionalComments    string      `json:"commentairesSupplementaires,omitempty"`
	Complete              bool        `json:"estComplete"`
	Draft                 bool        `json:"estBrouillon"`
	CreatedAt             time.Time   `json:"creeA"`
}

const (
	MinScore = 1
	MaxScore = 5
)

type Filter struct {
	Status     Status
	Date       *time.Time
	ExaminerID common.UUID
	PeriodID   common.UUID

	CandidateID common.UUID
}

type Repository interface {
	Create(ctx context.Context, iv *Interview) error
	GetByID(ctx context.Context, id common.UUID) (*Detail, error)
	List(ctx context.Context, filter Filter) ([]Detail, error)
	Update(ctx context.Context, iv *Interview) error
	AddNote(ctx context.Context, note *Note) error
	ListNotes(ctx context.Context, interviewID common.UUID) ([]Note, error)
	ListByCandidature(ctx context.Context, candidatureID common.UUID) ([]Interview, error)
}
