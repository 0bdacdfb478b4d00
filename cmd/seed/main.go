// Command seed loads reference data (accounts, programs, periods) from a YAML
// file. Rows that already exist are left untouched.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"admissions/internal/common"
	"admissions/internal/database"
	"admissions/internal/domain/period"
	"admissions/internal/domain/program"
	"admissions/internal/domain/user"
	"admissions/internal/repository/postgres"
	"admissions/internal/security"
)

type seedFile struct {
	Users    []seedUser    `yaml:"users"`
	Programs []seedProgram `yaml:"programs"`
	Periods  []seedPeriod  `yaml:"periods"`
}

type seedUser struct {
	Email           string   `yaml:"email"`
	Password        string   `yaml:"password"`
	FirstName       string   `yaml:"prenom"`
	LastName        string   `yaml:"nom"`
	Phone           string   `yaml:"telephone"`
	Role            string   `yaml:"role"`
	Department      string   `yaml:"departement"`
	Title           string   `yaml:"titre"`
	Specializations []string `yaml:"specialisation"`
	Programs        []string `yaml:"programmes"`
}

type seedProgram struct {
	Code              string   `yaml:"code"`
	Name              string   `yaml:"nom"`
	Description       string   `yaml:"description"`
	Department        string   `yaml:"departement"`
	Degree            string   `yaml:"diplome"`
	DurationMonths    int      `yaml:"duree"`
	MinimumAverage    float64  `yaml:"moyenneMinimale"`
	RequiredDocuments []string `yaml:"documentsRequis"`
	ApplicationFee    float64  `yaml:"fraisCandidature"`
	Capacity          int      `yaml:"capacite"`
	Deadline          string   `yaml:"dateLimite"`
}

type seedPeriod struct {
	Name              string   `yaml:"nom"`
	Year              int      `yaml:"annee"`
	Semester          string   `yaml:"semestre"`
	StartDate         string   `yaml:"dateDebut"`
	EndDate           string   `yaml:"dateFin"`
	ApplicationCutoff string   `yaml:"dateLimiteCandidature"`
	DecisionDate      string   `yaml:"dateDecision"`
	Status            string   `yaml:"statut"`
	Programs          []string `yaml:"programmes"`
}

type result struct {
	entity string
	key    string
	status string
}

type seeder struct {
	users    *postgres.UserRepository
	programs *postgres.ProgramRepository
	periods  *postgres.PeriodRepository
	results  []result
}

func main() {
	path := flag.String("file", "seed.yaml", "seed file")
	flag.Parse()
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fail("DATABASE_URL is required")
	}
	raw, err := os.ReadFile(*path)
	if err != nil {
		fail("read %s: %v", *path, err)
	}
	var data seedFile
	if err := yaml.Unmarshal(raw, &data); err != nil {
		fail("parse %s: %v", *path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db, err := database.NewPostgres(ctx, database.PostgresConfig{DSN: dsn, MaxOpenConns: 4, MaxIdleConns: 2}, zap.NewNop())
	if err != nil {
		fail("postgres: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, zap.NewNop()); err != nil {
		fail("migrate: %v", err)
	}

	s := &seeder{
		users:    postgres.NewUserRepository(db),
		programs: postgres.NewProgramRepository(db),
		periods:  postgres.NewPeriodRepository(db),
	}
	if err := s.run(ctx, data); err != nil {
		s.print()
		fail("%v", err)
	}
	s.print()
	color.Green("\nSeed completed.")
}

func fail(format string, args ...any) {
	color.Red(format, args...)
	os.Exit(1)
}

func (s *seeder) run(ctx context.Context, data seedFile) error {
	codes := map[string]common.UUID{}
	for _, p := range data.Programs {
		id, err := s.program(ctx, p)
		if err != nil {
			return err
		}
		codes[program.NormalizeCode(p.Code)] = id
	}
	for _, u := range data.Users {
		if err := s.user(ctx, u, codes); err != nil {
			return err
		}
	}
	for _, p := range data.Periods {
		if err := s.period(ctx, p, codes); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) record(entity, key string, created bool) {
	status := "exists"
	if created {
		status = "created"
	}
	s.results = append(s.results, result{entity: entity, key: key, status: status})
}

func (s *seeder) program(ctx context.Context, in seedProgram) (common.UUID, error) {
	code := program.NormalizeCode(in.Code)
	existing, err := s.programs.GetByCode(ctx, code)
	if err == nil {
		s.record("programme", code, false)
		return existing.ID, nil
	}
	if !common.Is(err, common.CodeNotFound) {
		return "", fmt.Errorf("program %s: %w", code, err)
	}
	p := &program.Program{
		Code:              code,
		Name:              in.Name,
		Description:       in.Description,
		Department:        in.Department,
		Degree:            in.Degree,
		DurationMonths:    in.DurationMonths,
		MinimumAverage:    in.MinimumAverage,
		RequiredDocuments: in.RequiredDocuments,
		ApplicationFee:    in.ApplicationFee,
		Capacity:          in.Capacity,
		Active:            true,
	}
	if in.Deadline != "" {
		deadline, err := user.ParseDate(in.Deadline)
		if err != nil {
			return "", fmt.Errorf("program %s: dateLimite: %w", code, err)
		}
		p.Deadline = &deadline
	}
	if err := s.programs.Create(ctx, p); err != nil {
		return "", fmt.Errorf("program %s: %w", code, err)
	}
	s.record("programme", code, true)
	return p.ID, nil
}

func (s *seeder) user(ctx context.Context, in seedUser, codes map[string]common.UUID) error {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.record("utilisateur", email, false)
		return nil
	} else if !common.Is(err, common.CodeNotFound) {
		return fmt.Errorf("user %s: %w", email, err)
	}

	role := user.NormalizeRole(in.Role)
	if !role.IsKnown() {
		return fmt.Errorf("user %s: role %q cannot be seeded", email, in.Role)
	}
	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}
	account := &user.Account{User: user.User{
		ID:            common.NewUUID(),
		Email:         email,
		PasswordHash:  hash,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Phone:         in.Phone,
		Role:          role,
		Status:        user.StatusActive,
		EmailVerified: true,
	}}
	switch role {
	case user.RoleCandidate:
		account.Candidate = &user.CandidateProfile{Country: user.DefaultCountry}
	case user.RoleCoordinator:
		assigned := make([]common.UUID, 0, len(in.Programs))
		for _, code := range in.Programs {
			id, ok := codes[program.NormalizeCode(code)]
			if !ok {
				return fmt.Errorf("user %s: unknown program %s", email, code)
			}
			assigned = append(assigned, id)
		}
		account.Coordinator = &user.CoordinatorProfile{Department: in.Department, Specializations: in.Specializations, AssignedPrograms: assigned}
	case user.RoleExaminer:
		account.Examiner = &user.ExaminerProfile{
			Title:               in.Title,
			Department:          in.Department,
			Specializations:     in.Specializations,
			MaxInterviewsPerDay: user.DefaultMaxInterviewsPerDay,
		}
	case user.RoleAdmin:
		department := in.Department
		if department == "" {
			department = user.DefaultAdminDepartment
		}
		account.Admin = &user.AdminProfile{Department: department}
	}
	if err := s.users.Create(ctx, account); err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}
	s.record("utilisateur", email, true)
	return nil
}

func (s *seeder) period(ctx context.Context, in seedPeriod, codes map[string]common.UUID) error {
	existing, err := s.periods.List(ctx)
	if err != nil {
		return fmt.Errorf("period %s: %w", in.Name, err)
	}
	for _, p := range existing {
		if strings.EqualFold(p.Name, in.Name) {
			s.record("periode", in.Name, false)
			return nil
		}
	}

	p := &period.Period{
		Name:     in.Name,
		Year:     in.Year,
		Semester: period.Semester(strings.ToUpper(in.Semester)),
		Status:   period.Status(strings.ToUpper(in.Status)),
	}
	if p.Status == "" {
		p.Status = period.StatusUpcoming
	}
	for _, field := range []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"dateDebut", in.StartDate, &p.StartDate},
		{"dateFin", in.EndDate, &p.EndDate},
		{"dateLimiteCandidature", in.ApplicationCutoff, &p.ApplicationCutoff},
	} {
		parsed, err := user.ParseDate(field.value)
		if err != nil {
			return fmt.Errorf("period %s: %s: %w", in.Name, field.name, err)
		}
		*field.dst = parsed
	}
	if in.DecisionDate != "" {
		decision, err := user.ParseDate(in.DecisionDate)
		if err != nil {
			return fmt.Errorf("period %s: dateDecision: %w", in.Name, err)
		}
		p.DecisionDate = &decision
	}
	for _, code := range in.Programs {
		id, ok := codes[program.NormalizeCode(code)]
		if !ok {
			return fmt.Errorf("period %s: unknown program %s", in.Name, code)
		}
		p.ProgramIDs = append(p.ProgramIDs, id)
	}
	if err := s.periods.Create(ctx, p); err != nil {
		return fmt.Errorf("period %s: %w", in.Name, err)
	}
	s.record("periode", in.Name, true)
	return nil
}

func (s *seeder) print() {
	created := color.New(color.FgGreen).SprintFunc()
	exists := color.New(color.FgYellow).SprintFunc()

	color.Cyan("\n=== Seed summary ===")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Entity", "Key", "Status"})
	for _, r := range s.results {
		status := exists(r.status)
		if r.status == "created" {
			status = created(r.status)
		}
		table.Append([]string{r.entity, r.key, status})
	}
	table.Render()
}
