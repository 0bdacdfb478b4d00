package candidature

import (
	"time"

	"admissions/internal/common"
)

type EventKind string

const (
	EventCreated             EventKind = "CREATION"
	EventSubmitted           EventKind = "SOUMISSION"
	EventWithdrawn           EventKind = "RETRAIT"
	EventUpdated             EventKind = "MISE_A_JOUR"
	EventPersonalInfoUpdated EventKind = "MISE_A_JOUR_INFORMATIONS_PERSONNELLES"
	EventRecordAdded         EventKind = "AJOUT_DOSSIER_ACADEMIQUE"
	EventRecordUpdated       EventKind = "MISE_A_JOUR_DOSSIER_ACADEMIQUE"
	EventRecordDeleted       EventKind = "SUPPRESSION_DOSSIER_ACADEMIQUE"
	EventDocumentAdded       EventKind = "AJOUT_DOCUMENT"
	EventDocumentReplaced    EventKind = "REMPLACEMENT_DOCUMENT"
	EventDocumentDeleted     EventKind = "SUPPRESSION_DOCUMENT"
	EventDocumentVerified    EventKind = "VERIFICATION_DOCUMENT"
	EventDecision            EventKind = "DECISION"
	EventStatusChanged       EventKind = "CHANGEMENT_STATUT"
)

type EventStatus string

const (
	EventInProgress EventStatus = "EN_COURS"
	EventDone       EventStatus = "TERMINE"
	EventCancelled  EventStatus = "ANNULE"
)

// Event is an append-only chronology entry. It is removed only together with
// its candidature.
type Event struct {
	ID            common.UUID    `json:"id"`
	CandidatureID common.UUID    `json:"candidatureId"`
	Kind          EventKind      `json:"evenement"`
	Description   string         `json:"description"`
	ActorID       *common.UUID   `json:"acteurId,omitempty"`
	Status        EventStatus    `json:"statut"`
	Metadata      map[string]any `json:"metadonnees,omitempty"`
	CreatedAt     time.Time      `json:"creeA"`
}

func NewEvent(candidatureID common.UUID, kind EventKind, description string, actorID common.UUID, at time.Time) Event {
	event := Event{
		ID:            common.NewUUID(),
		CandidatureID: candidatureID,
		Kind:          kind,
		Description:   description,
		Status:        EventDone,
		CreatedAt:     at,
	}
	if !actorID.IsZero() {
		id := actorID
		event.ActorID = &id
	}
	return event
}
