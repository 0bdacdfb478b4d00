package stats

import (
	"context"
	"time"

	"admissions/internal/common"
)

type Dashboard struct {
	TotalCandidatures    int            `json:"totalCandidatures"`
	ActiveCandidatures   int            `json:"candidaturesActives"`
	TotalExaminers       int            `json:"totalExaminateurs"`
	PeriodsThisYear      int            `json:"periodesCetteAnnee"`
	CurrentPeriodID      *common.UUID   `json:"periodeCouranteId,omitempty"`
	CurrentPeriodName    string         `json:"periodeCouranteNom,omitempty"`
	CurrentPeriodByState map[string]int `json:"periodeCouranteParStatut"`
}

type Activity struct {
	CandidatureID     common.UUID `json:"candidatureId"`
	CandidatureNumber string      `json:"numeroCandidature"`
	CandidatureStatus string      `json:"statutCandidature"`
	CandidateName     string      `json:"candidatNom"`
	Kind              string      `json:"evenement"`
	Description       string      `json:"description"`
	CreatedAt         time.Time   `json:"creeA"`
}

type Coordinator struct {
	Programs           int            `json:"programmes"`
	Candidatures       int            `json:"candidatures"`
	ByStatus           map[string]int `json:"parStatut"`
	UpcomingInterviews int            `json:"entretiensAVenir"`
	PendingDocuments   int            `json:"documentsEnAttente"`
}

type Interviewer struct {
	Assigned       int `json:"assignes"`
	Completed      int `json:"termines"`
	Pending        int `json:"enAttente"`
	NotesSubmitted int `json:"notesSoumises"`
}

type Repository interface {
	Dashboard(ctx context.Context, now time.Time) (*Dashboard, error)
	RecentActivities(ctx context.Context, limit int) ([]Activity, error)
	Coordinator(ctx context.Context, programIDs []common.UUID, now time.Time) (*Coordinator, error)
	Interviewer(ctx context.Context, examinerID common.UUID, now time.Time) (*Interviewer, error)
}
