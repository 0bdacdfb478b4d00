package candidature

import (
	"context"
	"time"

	"admissions/internal/common"
	"admissions/internal/domain/document"
	"admissions/internal/domain/user"
)

type Filter struct {
	Status    Status
	ProgramID common.UUID
	PeriodID  common.UUID
	Search    string

	// Scope restrictions derived from the caller's role.
	CandidateID  common.UUID
	ProgramIDs   []common.UUID
	OnlyPrograms bool

	Page  int
	Limit int
}

type Repository interface {
	GetByID(ctx context.Context, id common.UUID) (*Candidature, error)
	List(ctx context.Context, filter Filter) ([]Summary, int, error)
	ListByCandidate(ctx context.Context, candidateID common.UUID) ([]Summary, error)
	HasOpen(ctx context.Context, candidateID common.UUID, statuses []Status, now time.Time) (bool, error)
	ListRecords(ctx context.Context, candidatureID common.UUID) ([]AcademicRecord, error)
	ListReferences(ctx context.Context, candidatureID common.UUID) ([]Reference, error)
	ListEvents(ctx context.Context, candidatureID common.UUID) ([]Event, error)
	ListNotes(ctx context.Context, candidatureID common.UUID) ([]Note, error)
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of one unit of work. Every mutation of a candidature
// and its dependents goes through a Tx so that the chronology commits with it.
type Tx interface {
	GetForUpdate(ctx context.Context, id common.UUID) (*Candidature, error)
	Create(ctx context.Context, c *Candidature) error
	Update(ctx context.Context, c *Candidature) error
	NextNumber(ctx context.Context, year int) (int, error)
	AppendEvent(ctx context.Context, event Event) error

	GetCandidate(ctx context.Context, userID common.UUID) (*user.User, error)
	UpdateCandidate(ctx context.Context, userID common.UUID, identity user.IdentityPatch, profile user.CandidateProfilePatch) error

	ListDocuments(ctx context.Context, candidatureID common.UUID) ([]document.Document, error)
	ListRecords(ctx context.Context, candidatureID common.UUID) ([]AcademicRecord, error)

	GetRecord(ctx context.Context, candidatureID, recordID common.UUID) (*AcademicRecord, error)
	SaveRecord(ctx context.Context, record *AcademicRecord) error
	DeleteRecord(ctx context.Context, candidatureID, recordID common.UUID) error
	ReplaceRecords(ctx context.Context, candidatureID common.UUID, records []AcademicRecord) error
	ReplaceReferences(ctx context.Context, candidatureID common.UUID, references []Reference) error

	CreateDocument(ctx context.Context, doc *document.Document) error
	UpdateDocument(ctx context.Context, doc *document.Document) error
	DeleteDocument(ctx context.Context, id common.UUID) error
	AddVerification(ctx context.Context, verification *document.Verification) error

	AddNote(ctx context.Context, note *Note) error
	DeleteNote(ctx context.Context, candidatureID, noteID common.UUID) error
}
