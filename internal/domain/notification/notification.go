package notification

import (
	"context"
	"time"

	"admissions/internal/common"
)

type Type string

const (
	TypeSystem  Type = "SYSTEME"
	TypeRegular Type = "REGULIERE"
)

func (t Type) IsKnown() bool {
	return t == TypeSystem || t == TypeRegular
}

type Audience string

const (
	AudienceAll              Audience = "TOUS"
	AudienceCandidates       Audience = "CANDIDATS"
	AudienceCoordinators     Audience = "COORDINATEURS"
	AudienceExaminers        Audience = "EXAMINATEURS"
	AudienceAdmins           Audience = "ADMINISTRATEURS"
	AudienceSpecificPrograms Audience = "PROGRAMMES_SPECIFIQUES"
)

var audiences = []Audience{
	AudienceAll,
	AudienceCandidates,
	AudienceCoordinators,
	AudienceExaminers,
	AudienceAdmins,
	AudienceSpecificPrograms,
}

func Audiences() []Audience {
	return append([]Audience(nil), audiences...)
}

func (a Audience) IsKnown() bool {
	for _, known := range audiences {
		if known == a {
			return true
		}
	}
	return false
}

type Notification struct {
	ID         common.UUID   `json:"id"`
	Title      string        `json:"titre"`
	Content    string        `json:"contenu"`
	Type       Type          `json:"type"`
	Audience   Audience      `json:"audience"`
	ProgramIDs []common.UUID `json:"programmeIds,omitempty"`
	SenderID   common.UUID   `json:"expediteurId"`
	CreatedAt  time.Time     `json:"creeA"`
}

// Inbox is a notification as seen by one recipient.
type Inbox struct {
	ID        common.UUID `json:"id"`
	Title     string      `json:"titre"`
	Content   string      `json:"contenu"`
	Type      Type        `json:"type"`
	CreatedAt time.Time   `json:"creeA"`
	Read      bool        `json:"lue"`
	ReadAt    *time.Time  `json:"lueA,omitempty"`
}

// Delivery summarises how a notification was received.
type Delivery struct {
	Notification
	Recipients int `json:"envoyeA"`
	Read       int `json:"lue"`
	Unread     int `json:"nonLue"`
}

type InboxFilter struct {
	Read  *bool
	Type  Type
	Limit int
}

const DefaultInboxLimit = 20

type Repository interface {
	// Create stores n and one recipient row per id in a single transaction.
	Create(ctx context.Context, n *Notification, recipients []common.UUID, methods []string) error
	ListInbox(ctx context.Context, userID common.UUID, filter InboxFilter) ([]Inbox, error)
	MarkRead(ctx context.Context, userID, notificationID common.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID common.UUID, at time.Time) (int, error)
	ListDeliveries(ctx context.Context) ([]Delivery, error)
	Delete(ctx context.Context, id common.UUID) error
	ResolveAudience(ctx context.Context, audience Audience, programIDs []common.UUID) ([]common.UUID, error)
}
