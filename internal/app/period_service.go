package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"admissions/internal/common"
	"admissions/internal/domain/period"
)

type PeriodService struct {
	periods period.Repository
	logger  *zap.Logger
	now     func() time.Time
}

func NewPeriodService(periods period.Repository, logger *zap.Logger) *PeriodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{periods: periods, logger: logger, now: utcNow}
}

type PeriodInput struct {
	Name              string
	Year              int
	Semester          period.Semester
	StartDate         time.Time
	EndDate           time.Time
	ApplicationCutoff time.Time
	DecisionDate      *time.Time
	ProgramIDs        []common.UUID
}

// PeriodPatch is applied on top of the stored period. Nil fields are kept.
type PeriodPatch struct {
	Name              *string
	Year              *int
	Semester          *period.Semester
	StartDate         *time.Time
	EndDate           *time.Time
	ApplicationCutoff *time.Time
	DecisionDate      *time.Time
	Status            *period.Status
	ProgramIDs        []common.UUID
}

func validatePeriod(p *period.Period) error {
	fields := map[string]string{}
	requireText(fields, "nom", p.Name, "name is required")
	if p.Year < 2000 {
		fields["annee"] = "a valid year is required"
	}
	if !p.Semester.IsKnown() {
		fields["semestre"] = "must be AUTOMNE, PRINTEMPS or ETE"
	}
	if !p.Status.IsKnown() {
		fields["statut"] = "unknown status"
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() || p.ApplicationCutoff.IsZero() {
		fields["dates"] = "dateDebut, dateLimiteCandidature and dateFin are required"
	} else if p.ApplicationCutoff.Before(p.StartDate) || p.EndDate.Before(p.ApplicationCutoff) {
		fields["dates"] = "expected dateDebut <= dateLimiteCandidature <= dateFin"
	}
	if len(fields) > 0 {
		return common.NewValidationError("invalid period", fields)
	}
	return nil
}

func (s *PeriodService) Create(ctx context.Context, input PeriodInput) (*period.Period, error) {
	p := &period.Period{
		ID:                common.NewUUID(),
		Name:              strings.TrimSpace(input.Name),
		Year:              input.Year,
		Semester:          input.Semester,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		ApplicationCutoff: input.ApplicationCutoff,
		DecisionDate:      input.DecisionDate,
		Status:            period.StatusUpcoming,
		ProgramIDs:        input.ProgramIDs,
	}
	if p.ProgramIDs == nil {
		p.ProgramIDs = []common.UUID{}
	}
	if err := validatePeriod(p); err != nil {
		return nil, err
	}
	if err := s.periods.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("period created", zap.String("period_id", p.ID.String()), zap.Int("year", p.Year))
	return p, nil
}

func (s *PeriodService) List(ctx context.Context) ([]period.Summary, error) {
	return s.periods.List(ctx)
}

func (s *PeriodService) Get(ctx context.Context, id common.UUID) (*period.Summary, error) {
	return s.periods.GetSummary(ctx, id)
}

func (s *PeriodService) Update(ctx context.Context, id common.UUID, patch PeriodPatch) (*period.Period, error) {
	p, err := s.periods.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Year != nil {
		p.Year = *patch.Year
	}
	if patch.Semester != nil {
		p.Semester = *patch.Semester
	}
	if patch.StartDate != nil {
		p.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		p.EndDate = *patch.EndDate
	}
	if patch.ApplicationCutoff != nil {
		p.ApplicationCutoff = *patch.ApplicationCutoff
	}
	if patch.DecisionDate != nil {
		p.DecisionDate = patch.DecisionDate
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.ProgramIDs != nil {
		p.ProgramIDs = patch.ProgramIDs
	}
	if err := validatePeriod(p); err != nil {
		return nil, err
	}
	if err := s.periods.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PeriodService) Delete(ctx context.Context, id common.UUID) error {
	if _, err := s.periods.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.periods.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("period deleted", zap.String("period_id", id.String()))
	return nil
}

// ListActive returns the periods currently open for applications.
func (s *PeriodService) ListActive(ctx context.Context) ([]period.Period, error) {
	return s.periods.ListActive(ctx, s.now())
}
