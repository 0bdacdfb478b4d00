package candidature

import (
	"fmt"
	"strings"

	"admissions/internal/common"
)

type Status string

const (
	StatusDraft         Status = "BROUILLON"
	StatusSubmitted     Status = "SOUMISE"
	StatusUnderReview   Status = "EN_COURS_EXAMEN"
	StatusInterviewDone Status = "ENTRETIEN_TERMINE"
	StatusAccepted      Status = "ACCEPTEE"
	StatusRejected      Status = "REFUSEE"
	StatusWaitlisted    Status = "LISTE_ATTENTE"
	StatusWithdrawn     Status = "RETIREE"
)

var knownStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusInterviewDone,
	StatusAccepted,
	StatusRejected,
	StatusWaitlisted,
	StatusWithdrawn,
}

// decisionEdges are the transitions staff may apply through a review decision.
// Submission and withdrawal have their own entry points.
var decisionEdges = map[Status][]Status{
	StatusSubmitted:     {StatusUnderReview, StatusAccepted, StatusRejected, StatusWaitlisted},
	StatusUnderReview:   {StatusInterviewDone, StatusAccepted, StatusRejected, StatusWaitlisted},
	StatusInterviewDone: {StatusAccepted, StatusRejected, StatusWaitlisted},
	StatusWaitlisted:    {StatusAccepted, StatusRejected},
}

func Statuses() []Status {
	return append([]Status(nil), knownStatuses...)
}

func NormalizeStatus(value string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(value)))
}

func (s Status) IsKnown() bool {
	for _, known := range knownStatuses {
		if known == s {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusWithdrawn
}

// EditableByCandidate reports whether the owner may still change the file.
func (s Status) EditableByCandidate() bool {
	return s == StatusDraft
}

// CanTransition reports whether from -> to is a legal edge of the lifecycle.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusSubmitted:
		return from == StatusDraft
	case StatusWithdrawn:
		return from.IsKnown() && from != StatusWithdrawn
	}
	for _, next := range decisionEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanDecide reports whether staff may move from -> to with a review decision.
func CanDecide(from, to Status) bool {
	for _, next := range decisionEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanOverride reports whether an administrator may force the candidature into
// to regardless of its current status.
func CanOverride(to Status) bool {
	return to.IsKnown() && to != StatusDraft && to != StatusWithdrawn
}

func TransitionError(from, to Status) error {
	return common.NewError(common.CodeForbidden, fmt.Sprintf("transition from %s to %s is not allowed", from, to), nil)
}
