package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/25x8/bonus-approvals/internal/models"
	"github.com/25x8/bonus-approvals/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClaimService takes claims from members and files them as pending.
type ClaimService struct {
	repo repository.Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewClaimService(repo repository.Repository, log *zap.Logger) *ClaimService {
	return &ClaimService{
		repo: repo,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *ClaimService) SubmitTrainingBonusClaim(ctx context.Context, claim models.TrainingBonusClaim) (*models.TrainingBonusClaim, error) {
	claim.ID = uuid.NewString()
	claim.Status = models.StatusPending
	claim.CreatedAt = s.now()

	if err := claim.Validate(); err != nil {
		return nil, newValidationError(err)
	}

	err := s.repo.InTx(ctx, func(q repository.Queries) error {
		if err := s.requireUser(ctx, q, claim.Username); err != nil {
			return err
		}
		if err := q.CreateTrainingBonusClaim(ctx, &claim); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateClaim
			}
			return fmt.Errorf("create claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("claim submitted",
		zap.String("pipeline", models.PipelineTrainingBonus),
		zap.String("claim_id", claim.ID),
		zap.String("username", claim.Username),
	)
	return &claim, nil
}

func (s *ClaimService) SubmitReferralClaim(ctx context.Context, claim models.ReferralClaim) (*models.ReferralClaim, error) {
	claim.ID = uuid.NewString()
	claim.Status = models.StatusPending
	claim.CreatedAt = s.now()

	if err := claim.Validate(); err != nil {
		return nil, newValidationError(err)
	}

	err := s.repo.InTx(ctx, func(q repository.Queries) error {
		if err := s.requireUser(ctx, q, claim.Username); err != nil {
			return err
		}
		if err := q.CreateReferralClaim(ctx, &claim); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateClaim
			}
			return fmt.Errorf("create claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("claim submitted",
		zap.String("pipeline", models.PipelineReferral),
		zap.String("claim_id", claim.ID),
		zap.String("username", claim.Username),
	)
	return &claim, nil
}

func (s *ClaimService) requireUser(ctx context.Context, q repository.Queries, username string) error {
	user, err := q.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("get user %q: %w", username, err)
	}
	if user == nil {
		return fmt.Errorf("%w: %q", ErrUserNotFound, username)
	}
	return nil
}
