package app

import (
	"context"
	"time"

	"admissions/internal/access"
	"admissions/internal/domain/stats"
	"admissions/internal/domain/user"
)

const defaultActivityLimit = 5

type StatsService struct {
	stats       stats.Repository
	assignments user.ProgramAssignments
	now         func() time.Time
}

func NewStatsService(repo stats.Repository, assignments user.ProgramAssignments) *StatsService {
	return &StatsService{stats: repo, assignments: assignments, now: utcNow}
}

func (s *StatsService) Dashboard(ctx context.Context, actor access.Actor) (*stats.Dashboard, error) {
	if err := requireRole(actor, user.RoleAdmin, user.RoleCoordinator); err != nil {
		return nil, err
	}
	return s.stats.Dashboard(ctx, s.now())
}

func (s *StatsService) RecentActivities(ctx context.Context, actor access.Actor, limit int) ([]stats.Activity, error) {
	if err := requireRole(actor, user.RoleAdmin, user.RoleCoordinator); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	items, err := s.stats.RecentActivities(ctx, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []stats.Activity{}
	}
	return items, nil
}

// Coordinator reports on the programs assigned to the calling coordinator.
func (s *StatsService) Coordinator(ctx context.Context, actor access.Actor) (*stats.Coordinator, error) {
	if err := requireRole(actor, user.RoleCoordinator); err != nil {
		return nil, err
	}
	programs, err := s.assignments.AssignedPrograms(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	report, err := s.stats.Coordinator(ctx, programs, s.now())
	if err != nil {
		return nil, err
	}
	report.Programs = len(programs)
	return report, nil
}

func (s *StatsService) Interviewer(ctx context.Context, actor access.Actor) (*stats.Interviewer, error) {
	if err := requireRole(actor, user.RoleExaminer); err != nil {
		return nil, err
	}
	return s.stats.Interviewer(ctx, actor.ID, s.now())
}
