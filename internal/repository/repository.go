package repository

import (
	"context"
	"errors"

	"github.com/25x8/bonus-approvals/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Queries is the record store. Lookups return nil, nil when nothing matches.
type Queries interface {
	CreateUser(ctx context.Context, user *models.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserLedger(ctx context.Context, user *models.User) error

	CreateTrainingBonusClaim(ctx context.Context, claim *models.TrainingBonusClaim) error
	GetTrainingBonusClaim(ctx context.Context, id string) (*models.TrainingBonusClaim, error)
	ListPendingTrainingBonusClaims(ctx context.Context) ([]models.TrainingBonusClaim, error)
	DeleteTrainingBonusClaim(ctx context.Context, id string) error
	CreateTrainingBonusApproved(ctx context.Context, rec *models.TrainingBonusApproved) error
	CreateTrainingBonusRejected(ctx context.Context, rec *models.TrainingBonusRejected) error
	ListTrainingBonusApproved(ctx context.Context) ([]models.TrainingBonusApproved, error)
	ListTrainingBonusRejected(ctx context.Context) ([]models.TrainingBonusRejected, error)

	CreateReferralClaim(ctx context.Context, claim *models.ReferralClaim) error
	GetReferralClaim(ctx context.Context, id string) (*models.ReferralClaim, error)
	ListPendingReferralClaims(ctx context.Context) ([]models.ReferralClaim, error)
	DeleteReferralClaim(ctx context.Context, id string) error
	CreateReferralApproved(ctx context.Context, rec *models.ReferralApproved) error
	CreateReferralRejected(ctx context.Context, rec *models.ReferralRejected) error
	ListReferralApproved(ctx context.Context) ([]models.ReferralApproved, error)
	ListReferralRejected(ctx context.Context) ([]models.ReferralRejected, error)

	CreatePendingRegistration(ctx context.Context, reg *models.PendingRegistration) error
	ListPendingRegistrations(ctx context.Context) ([]models.PendingRegistration, error)

	CountPendingClaims(ctx context.Context) (map[string]int64, error)
}

// Repository runs multi-record changes through InTx: fn sees one
// transaction, which commits when fn returns nil and rolls back otherwise.
type Repository interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
	Close() error
}
