package app

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"admissions/internal/access"
	"admissions/internal/common"
	"admissions/internal/domain/user"
	"admissions/internal/security"
)

type UserService struct {
	users  user.Repository
	logger *zap.Logger
}

func NewUserService(users user.Repository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, logger: logger}
}

type UserList struct {
	Users      []user.User `json:"utilisateurs"`
	Pagination Pagination  `json:"pagination"`
}

func (s *UserService) List(ctx context.Context, filter user.Filter) (*UserList, error) {
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)
	if filter.Role != "" && !filter.Role.IsKnown() {
		return nil, common.NewValidationError("invalid role", map[string]string{"role": "unknown role"})
	}
	if filter.Status != "" && !filter.Status.IsKnown() {
		return nil, common.NewValidationError("invalid status", map[string]string{"statut": "unknown status"})
	}
	filter.Search = strings.TrimSpace(filter.Search)
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []user.User{}
	}
	return &UserList{Users: users, Pagination: newPagination(filter.Page, filter.Limit, total)}, nil
}

func (s *UserService) ListExaminers(ctx context.Context) ([]user.User, error) {
	return s.users.ListActiveByRole(ctx, user.RoleExaminer)
}

func (s *UserService) ListCandidates(ctx context.Context) ([]user.User, error) {
	return s.users.ListActiveByRole(ctx, user.RoleCandidate)
}

func (s *UserService) Get(ctx context.Context, id common.UUID) (*user.Account, error) {
	return s.users.GetAccount(ctx, id)
}

// UserUpdate is an administrative patch. Nil fields are left untouched.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Role      *user.Role
	Status    *user.Status
	Password  *string
}

func (s *UserService) Update(ctx context.Context, id common.UUID, input UserUpdate) (*user.Account, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if input.Role != nil && !input.Role.IsKnown() {
		fields["role"] = "unknown role"
	}
	if input.Status != nil && !input.Status.IsKnown() {
		fields["statut"] = "unknown status"
	}
	if input.Email != nil && !strings.Contains(*input.Email, "@") {
		fields["email"] = "a valid email is required"
	}
	if input.Password != nil && utf8.RuneCountInString(*input.Password) < minPasswordLength {
		fields["motDePasse"] = "password must be at least 8 characters"
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid user update", fields)
	}

	user.IdentityPatch{FirstName: input.FirstName, LastName: input.LastName, Email: input.Email, Phone: input.Phone}.Apply(u)
	if input.Role != nil {
		u.Role = *input.Role
	}
	if input.Status != nil {
		u.Status = *input.Status
	}
	if input.Password != nil {
		hash, err := security.HashPassword(*input.Password)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to hash password", err)
		}
		u.PasswordHash = hash
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user updated", zap.String("user_id", id.String()))
	return s.users.GetAccount(ctx, id)
}

func (s *UserService) Delete(ctx context.Context, id common.UUID) error {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id.String()))
	return nil
}

// ProfileUpdate carries the profile fields of every role. Only the fields of
// the target user's role are used.
type ProfileUpdate struct {
	Candidate user.CandidateProfilePatch

	Department          *string
	Title               *string
	Specializations     []string
	MaxInterviewsPerDay *int
	AssignedPrograms    []common.UUID
}

// UpdateProfile upserts the role profile of id. Program assignments are only
// changed by administrators.
func (s *UserService) UpdateProfile(ctx context.Context, actor access.Actor, id common.UUID, input ProfileUpdate) (*user.Account, error) {
	if !actor.Is(user.RoleAdmin) && actor.ID != id {
		return nil, common.NewError(common.CodeForbidden, "cannot update another user's profile", nil)
	}
	account, err := s.users.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	switch account.Role {
	case user.RoleCandidate:
		profile := user.CandidateProfile{UserID: id, Country: user.DefaultCountry}
		if account.Candidate != nil {
			profile = *account.Candidate
		}
		input.Candidate.Apply(&profile)
		err = s.users.UpsertCandidateProfile(ctx, profile)
	case user.RoleCoordinator:
		profile := user.CoordinatorProfile{UserID: id}
		if account.Coordinator != nil {
			profile = *account.Coordinator
		}
		profile.AssignedPrograms = nil
		if input.Department != nil {
			profile.Department = strings.TrimSpace(*input.Department)
		}
		if input.Specializations != nil {
			profile.Specializations = input.Specializations
		}
		if input.AssignedPrograms != nil && actor.Is(user.RoleAdmin) {
			profile.AssignedPrograms = input.AssignedPrograms
		}
		err = s.users.UpsertCoordinatorProfile(ctx, profile)
	case user.RoleExaminer:
		profile := user.ExaminerProfile{UserID: id, MaxInterviewsPerDay: user.DefaultMaxInterviewsPerDay}
		if account.Examiner != nil {
			profile = *account.Examiner
		}
		if input.Title != nil {
			profile.Title = strings.TrimSpace(*input.Title)
		}
		if input.Department != nil {
			profile.Department = strings.TrimSpace(*input.Department)
		}
		if input.Specializations != nil {
			profile.Specializations = input.Specializations
		}
		if input.MaxInterviewsPerDay != nil {
			if *input.MaxInterviewsPerDay < 1 {
				return nil, common.NewValidationError("invalid profile", map[string]string{"maxEntretiensParJour": "must be at least 1"})
			}
			profile.MaxInterviewsPerDay = *input.MaxInterviewsPerDay
		}
		err = s.users.UpsertExaminerProfile(ctx, profile)
	case user.RoleAdmin:
		profile := user.AdminProfile{UserID: id, Department: user.DefaultAdminDepartment}
		if account.Admin != nil {
			profile = *account.Admin
		}
		if input.Department != nil {
			profile.Department = strings.TrimSpace(*input.Department)
		}
		err = s.users.UpsertAdminProfile(ctx, profile)
	default:
		return nil, common.NewError(common.CodeInternal, "user has an unknown role", nil)
	}
	if err != nil {
		return nil, err
	}
	return s.users.GetAccount(ctx, id)
}
