package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"admissions/internal/cache"
	"admissions/internal/common"
	"admissions/internal/domain/program"
)

type ProgramService struct {
	programs program.Repository
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewProgramService(programs program.Repository, c cache.Cache, cacheTTL time.Duration, logger *zap.Logger) *ProgramService {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{programs: programs, cache: c, cacheTTL: cacheTTL, logger: logger}
}

func programCacheKey(code string) string {
	return "programme:" + program.NormalizeCode(code)
}

func (s *ProgramService) List(ctx context.Context, filter program.Filter) ([]program.Program, error) {
	filter.Department = strings.TrimSpace(filter.Department)
	filter.Degree = strings.TrimSpace(filter.Degree)
	return s.programs.List(ctx, filter)
}

// Get reads through the cache. Cache failures fall back to the repository.
func (s *ProgramService) Get(ctx context.Context, code string) (*program.Program, error) {
	key := programCacheKey(code)
	var cached program.Program
	hit, err := cache.GetJSON(ctx, s.cache, key, &cached)
	if err != nil {
		s.logger.Warn("program cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		return &cached, nil
	}
	p, err := s.programs.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.cache, key, p, s.cacheTTL); err != nil {
		s.logger.Warn("program cache write failed", zap.String("key", key), zap.Error(err))
	}
	return p, nil
}

type ProgramInput struct {
	Code              string
	Name              string
	Description       string
	Department        string
	Degree            string
	DurationMonths    int
	MinimumAverage    float64
	RequiredDocuments []string
	ApplicationFee    float64
	Capacity          int
	Active            *bool
	Deadline          *time.Time
}

func validateProgram(input ProgramInput) error {
	fields := map[string]string{}
	requireText(fields, "code", input.Code, "code is required")
	requireText(fields, "nom", input.Name, "name is required")
	requireText(fields, "departement", input.Department, "department is required")
	requireText(fields, "diplome", input.Degree, "degree is required")
	if input.DurationMonths < 1 {
		fields["duree"] = "must be at least 1"
	}
	if input.Capacity < 1 {
		fields["capacite"] = "must be at least 1"
	}
	if input.MinimumAverage < 0 {
		fields["moyenneMinimale"] = "must not be negative"
	}
	if input.ApplicationFee < 0 {
		fields["fraisCandidature"] = "must not be negative"
	}
	if len(fields) > 0 {
		return common.NewValidationError("invalid program", fields)
	}
	return nil
}

func (s *ProgramService) Create(ctx context.Context, input ProgramInput) (*program.Program, error) {
	if err := validateProgram(input); err != nil {
		return nil, err
	}
	p := &program.Program{ID: common.NewUUID(), Active: true}
	applyProgramInput(p, input)
	if err := s.programs.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("program created", zap.String("code", p.Code))
	return p, nil
}

func (s *ProgramService) Update(ctx context.Context, code string, input ProgramInput) (*program.Program, error) {
	existing, err := s.programs.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Code) == "" {
		input.Code = existing.Code
	}
	if err := validateProgram(input); err != nil {
		return nil, err
	}
	applyProgramInput(existing, input)
	if err := s.programs.Update(ctx, existing); err != nil {
		return nil, err
	}
	s.invalidate(ctx, code, existing.Code)
	return existing, nil
}

func (s *ProgramService) Delete(ctx context.Context, code string) error {
	if err := s.programs.DeleteByCode(ctx, code); err != nil {
		return err
	}
	s.invalidate(ctx, code)
	s.logger.Info("program deleted", zap.String("code", program.NormalizeCode(code)))
	return nil
}

func (s *ProgramService) invalidate(ctx context.Context, codes ...string) {
	keys := make([]string, 0, len(codes))
	for _, code := range codes {
		keys = append(keys, programCacheKey(code))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.logger.Warn("program cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func applyProgramInput(p *program.Program, input ProgramInput) {
	p.Code = program.NormalizeCode(input.Code)
	p.Name = strings.TrimSpace(input.Name)
	p.Description = strings.TrimSpace(input.Description)
	p.Department = strings.TrimSpace(input.Department)
	p.Degree = strings.TrimSpace(input.Degree)
	p.DurationMonths = input.DurationMonths
	p.MinimumAverage = input.MinimumAverage
	p.RequiredDocuments = input.RequiredDocuments
	if p.RequiredDocuments == nil {
		p.RequiredDocuments = []string{}
	}
	p.ApplicationFee = input.ApplicationFee
	p.Capacity = input.Capacity
	if input.Active != nil {
		p.Active = *input.Active
	}
	p.Deadline = input.Deadline
}
