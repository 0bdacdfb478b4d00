package candidature

import (
	"time"

	"admissions/internal/common"
	"admissions/internal/domain/user"
)

type Priority string

const (
	PriorityLow    Priority = "BASSE"
	PriorityNormal Priority = "NORMALE"
	PriorityHigh   Priority = "HAUTE"
)

func (p Priority) IsKnown() bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh
}

type Candidature struct {
	ID             common.UUID `json:"id"`
	Number         string      `json:"numeroCandidature"`
	CandidateID    common.UUID `json:"candidatId"`
	ProgramID      common.UUID `json:"programmeId"`
	PeriodID       common.UUID `json:"periodeId"`
	Status         Status      `json:"statut"`
	Priority       Priority    `json:"priorite"`
	Progress       int         `json:"progression"`
	Statement      string      `json:"statement"`
	Decision       string      `json:"decision,omitempty"`
	DecisionReason string      `json:"raisonDecision,omitempty"`
	SubmittedAt    *time.Time  `json:"soumiseA,omitempty"`
	Deadline       *time.Time  `json:"dateLimite,omitempty"`
	CreatedAt      time.Time   `json:"creeA"`
	UpdatedAt      time.Time   `json:"modifieA"`
}

// Summary is the list projection with the names a reviewer needs.
type Summary struct {
	Candidature
	CandidateFirstName string `json:"candidatPrenom"`
	CandidateLastName  string `json:"candidatNom"`
	CandidateEmail     string `json:"candidatEmail"`
	ProgramName        string `json:"programmeNom"`
	ProgramCode        string `json:"programmeCode"`
	PeriodName         string `json:"periodeNom"`
}

type Semester struct {
	Name    string  `json:"nom"`
	Average float64 `json:"moyenne"`
}

type AcademicRecord struct {
	ID              common.UUID `json:"id"`
	CandidatureID   common.UUID `json:"candidatureId"`
	Institution     string      `json:"nomEtablissement"`
	InstitutionType string      `json:"typeEtablissement,omitempty"`
	City            string      `json:"ville,omitempty"`
	Country         string      `json:"pays,omitempty"`
	DegreeType      string      `json:"typeDiplome,omitempty"`
	FieldOfStudy    string      `json:"domaineEtude,omitempty"`
	Specialty       string      `json:"specialite,omitempty"`
	Honors          string      `json:"mention,omitempty"`
	Average         *float64    `json:"moyenne,omitempty"`
	Scale           *float64    `json:"echelleMoyenne,omitempty"`
	StartDate       *time.Time  `json:"dateDebut,omitempty"`
	EndDate         *time.Time  `json:"dateFin,omitempty"`
	GraduationDate  *time.Time  `json:"dateObtentionDiplome,omitempty"`
	Completed       bool        `json:"estTermine"`
	Semesters       []Semester  `json:"semestres,omitempty"`
	CreatedAt       time.Time   `json:"creeA"`
}

type Reference struct {
	ID            common.UUID `json:"id"`
	CandidatureID common.UUID `json:"candidatureId"`
	Name          string      `json:"nom"`
	Organization  string      `json:"organisation,omitempty"`
	Relation      string      `json:"relation,omitempty"`
	Email         string      `json:"email,omitempty"`
	Phone         string      `json:"telephone,omitempty"`
}

type NoteType string

const (
	NoteGeneral    NoteType = "GENERALE"
	NoteEvaluation NoteType = "EVALUATION"
	NoteInterview  NoteType = "ENTRETIEN"
	NoteDecision   NoteType = "DECISION"
)

func (t NoteType) IsKnown() bool {
	switch t {
	case NoteGeneral, NoteEvaluation, NoteInterview, NoteDecision:
		return true
	default:
		return false
	}
}

// Note keeps the author's name and role as they were when the note was written.
type Note struct {
	ID            common.UUID `json:"id"`
	CandidatureID common.UUID `json:"candidatureId"`
	Content       string      `json:"contenu"`
	Type          NoteType    `json:"type"`
	AuthorID      common.UUID `json:"auteurId"`
	AuthorName    string      `json:"auteurNom"`
	AuthorRole    user.Role   `json:"auteurRole"`
	CreatedAt     time.Time   `json:"creeA"`
}
