package user

import (
	"context"

	"admissions/internal/common"
)

type Filter struct {
	Role   Role
	Status Status
	Search string
	Page   int
	Limit  int
}

type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id common.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetAccount(ctx context.Context, id common.UUID) (*Account, error)
	GetByVerificationToken(ctx context.Context, tokenHash string) (*User, error)
	GetByResetToken(ctx context.Context, tokenHash string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id common.UUID) error
	List(ctx context.Context, filter Filter) ([]User, int, error)
	ListActiveByRole(ctx context.Context, role Role) ([]User, error)
	UpsertCandidateProfile(ctx context.Context, profile CandidateProfile) error
	UpsertCoordinatorProfile(ctx context.Context, profile CoordinatorProfile) error
	UpsertExaminerProfile(ctx context.Context, profile ExaminerProfile) error
	UpsertAdminProfile(ctx context.Context, profile AdminProfile) error
}

// ProgramAssignments answers which programs a coordinator is responsible for.
type ProgramAssignments interface {
	IsAssigned(ctx context.Context, coordinatorID, programID common.UUID) (bool, error)
	AssignedPrograms(ctx context.Context, coordinatorID common.UUID) ([]common.UUID, error)
}
