// Package access decides which actor may touch which candidature or interview.
// Each role has its own policy; the Matrix dispatches on the actor's role and
// returns a Decision before any mutation happens.
package access

import (
	"context"

	"admissions/internal/common"
	"admissions/internal/domain/user"
)

type Actor struct {
	ID   common.UUID
	Role user.Role
}

func (a Actor) Is(roles ...user.Role) bool {
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	reason := d.Reason
	if reason == "" {
		reason = "access denied"
	}
	return common.NewError(common.CodeForbidden, reason, nil)
}

// CandidatureRef carries what the policies need to know about a candidature.
type CandidatureRef struct {
	OwnerID   common.UUID
	ProgramID common.UUID
}

type InterviewRef struct {
	ExaminerID  common.UUID
	Candidature CandidatureRef
}

type Policy interface {
	Candidature(ctx context.Context, actor Actor, ref CandidatureRef) (Decision, error)
	Interview(ctx context.Context, actor Actor, ref InterviewRef) (Decision, error)
}

type Matrix struct {
	policies map[user.Role]Policy
}

func NewMatrix(assignments user.ProgramAssignments) *Matrix {
	return &Matrix{policies: map[user.Role]Policy{
		user.RoleCandidate:   candidatePolicy{},
		user.RoleCoordinator: coordinatorPolicy{assignments: assignments},
		user.RoleExaminer:    examinerPolicy{},
		user.RoleAdmin:       adminPolicy{},
	}}
}

func (m *Matrix) policy(role user.Role) (Policy, bool) {
	p, ok := m.policies[role]
	return p, ok
}

func (m *Matrix) Candidature(ctx context.Context, actor Actor, ref CandidatureRef) (Decision, error) {
	p, ok := m.policy(actor.Role)
	if !ok {
		return Deny("unknown role"), nil
	}
	return p.Candidature(ctx, actor, ref)
}

func (m *Matrix) Interview(ctx context.Context, actor Actor, ref InterviewRef) (Decision, error) {
	p, ok := m.policy(actor.Role)
	if !ok {
		return Deny("unknown role"), nil
	}
	return p.Interview(ctx, actor, ref)
}

// AuthorizeCandidature folds the decision and any lookup failure into one error.
func (m *Matrix) AuthorizeCandidature(ctx context.Context, actor Actor, ref CandidatureRef) error {
	decision, err := m.Candidature(ctx, actor, ref)
	if err != nil {
		return err
	}
	return decision.Err()
}

func (m *Matrix) AuthorizeInterview(ctx context.Context, actor Actor, ref InterviewRef) error {
	decision, err := m.Interview(ctx, actor, ref)
	if err != nil {
		return err
	}
	return decision.Err()
}

type candidatePolicy struct{}

func (candidatePolicy) Candidature(_ context.Context, actor Actor, ref CandidatureRef) (Decision, error) {
	if ref.OwnerID == actor.ID {
		return Allow(), nil
	}
	return Deny("candidature belongs to another candidate"), nil
}

func (p candidatePolicy) Interview(ctx context.Context, actor Actor, ref InterviewRef) (Decision, error) {
	return p.Candidature(ctx, actor, ref.Candidature)
}

type coordinatorPolicy struct {
	assignments user.ProgramAssignments
}

func (p coordinatorPolicy) Candidature(ctx context.Context, actor Actor, ref CandidatureRef) (Decision, error) {
	if p.assignments == nil {
		return Deny("coordinator is not assigned to this program"), nil
	}
	assigned, err := p.assignments.IsAssigned(ctx, actor.ID, ref.ProgramID)
	if err != nil {
		return Decision{}, err
	}
	if !assigned {
		return Deny("coordinator is not assigned to this program"), nil
	}
	return Allow(), nil
}

func (coordinatorPolicy) Interview(context.Context, Actor, InterviewRef) (Decision, error) {
	return Allow(), nil
}

type examinerPolicy struct{}

func (examinerPolicy) Candidature(context.Context, Actor, CandidatureRef) (Decision, error) {
	return Deny("examiners cannot access candidatures"), nil
}

func (examinerPolicy) Interview(_ context.Context, actor Actor, ref InterviewRef) (Decision, error) {
	if ref.ExaminerID == actor.ID {
		return Allow(), nil
	}
	return Deny("interview is assigned to another examiner"), nil
}

type adminPolicy struct{}

func (adminPolicy) Candidature(context.Context, Actor, CandidatureRef) (Decision, error) {
	return Allow(), nil
}

func (adminPolicy) Interview(context.Context, Actor, InterviewRef) (Decision, error) {
	return Allow(), nil
}
