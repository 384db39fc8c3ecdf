package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/25x8/bonus-approvals/internal/lock"
	"github.com/25x8/bonus-approvals/internal/metrics"
	"github.com/25x8/bonus-approvals/internal/models"
	"github.com/25x8/bonus-approvals/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Credited amounts are rounded half away from zero to whole cents.
const moneyPlaces = 2

type BonusRules struct {
	TrainingBonusRate   decimal.Decimal
	TrainingBonusPoints int64
}

type TrainingBonusDecisions struct {
	Approved []models.TrainingBonusApproved `json:"approved"`
	Rejected []models.TrainingBonusRejected `json:"rejected"`
}

type ReferralDecisions struct {
	Approved []models.ReferralApproved `json:"approved"`
	Rejected []models.ReferralRejected `json:"rejected"`
}

// ApprovalService decides pending claims. Every decision holds the claim's
// lock and applies all of its writes in one repository transaction.
type ApprovalService struct {
	repo   repository.Repository
	locker lock.Locker
	rules  BonusRules
	log    *zap.Logger
	now    func() time.Time
}

func NewApprovalService(repo repository.Repository, locker lock.Locker, rules BonusRules, log *zap.Logger) *ApprovalService {
	return &ApprovalService{
		repo:   repo,
		locker: locker,
		rules:  rules,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func credit(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(moneyPlaces)
}

func (s *ApprovalService) ListPendingTrainingBonus(ctx context.Context) ([]models.TrainingBonusClaim, error) {
	claims, err := s.repo.ListPendingTrainingBonusClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending training bonus claims: %w", err)
	}
	if claims == nil {
		claims = []models.TrainingBonusClaim{}
	}
	return claims, nil
}

func (s *ApprovalService) ListPendingReferral(ctx context.Context) ([]models.ReferralClaim, error) {
	claims, err := s.repo.ListPendingReferralClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending referral claims: %w", err)
	}
	if claims == nil {
		claims = []models.ReferralClaim{}
	}
	return claims, nil
}

func (s *ApprovalService) ApproveTrainingBonus(ctx context.Context, claimID, actor string) (*models.TrainingBonusApproved, error) {
	const pipeline = models.PipelineTrainingBonus

	if err := requireClaimID(claimID); err != nil {
		return nil, s.fail(pipeline, "approve", claimID, err)
	}

	unlock, err := s.lockClaim(ctx, pipeline, claimID)
	if err != nil {
		return nil, s.fail(pipeline, "approve", claimID, err)
	}
	defer unlock()

	var rec *models.TrainingBonusApproved
	err = s.repo.InTx(ctx, func(q repository.Queries) error {
		claim, err := q.GetTrainingBonusClaim(ctx, claimID)
		if err != nil {
			return fmt.Errorf("get claim: %w", err)
		}
		if claim == nil || claim.Status != models.StatusPending {
			return ErrClaimNotFound
		}
		if err := claim.Validate(); err != nil {
			return newValidationError(err)
		}

		user, err := q.GetUserByUsername(ctx, claim.Username)
		if err != nil {
			return fmt.Errorf("get user %q: %w", claim.Username, err)
		}
		if user == nil {
			return fmt.Errorf("%w: %q", ErrUserNotFound, claim.Username)
		}

		bonus := credit(claim.TransactionAmount, s.rules.TrainingBonusRate)
		user.Balance = user.Balance.Add(bonus)
		user.TrainingBonusBalance = user.TrainingBonusBalance.Add(bonus)
		user.TotalPoints += s.rules.TrainingBonusPoints
		if err := q.UpdateUserLedger(ctx, user); err != nil {
			return fmt.Errorf("update user %q: %w", user.Username, err)
		}

		rec = &models.TrainingBonusApproved{
			ID:        uuid.NewString(),
			Claim:     *claim,
			Bonus:     bonus,
			Points:    s.rules.TrainingBonusPoints,
			Status:    models.StatusApproved,
			DecidedBy: actor,
			DecidedAt: s.now(),
		}
		if err := q.CreateTrainingBonusApproved(ctx, rec); err != nil {
			return fmt.Errorf("append approved record: %w", err)
		}

		if err := q.DeleteTrainingBonusClaim(ctx, claimID); err != nil {
			return fmt.Errorf("delete claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(pipeline, "approve", claimID, err)
	}

	metrics.ClaimDecisionsTotal.WithLabelValues(pipeline, models.StatusApproved).Inc()
	metrics.CreditedAmountTotal.WithLabelValues(pipeline, "self").Add(rec.Bonus.InexactFloat64())
	s.log.Info("claim approved",
		zap.String("pipeline", pipeline),
		zap.String("claim_id", claimID),
		zap.String("username", rec.Claim.Username),
		zap.String("bonus", rec.Bonus.StringFixed(moneyPlaces)),
		zap.Int64("points", rec.Points),
		zap.String("actor", actor),
	)
	return rec, nil
}

func (s *ApprovalService) RejectTrainingBonus(ctx context.Context, claimID, feedback, actor string) (*models.TrainingBonusRejected, error) {
	const pipeline = models.PipelineTrainingBonus

	if err := requireDecisionInput(claimID, feedback); err != nil {
		return nil, s.fail(pipeline, "reject", claimID, err)
	}

	unlock, err := s.lockClaim(ctx, pipeline, claimID)
	if err != nil {
		return nil, s.fail(pipeline, "reject", claimID, err)
	}
	defer unlock()

	var rec *models.TrainingBonusRejected
	err = s.repo.InTx(ctx, func(q repository.Queries) error {
		claim, err := q.GetTrainingBonusClaim(ctx, claimID)
		if err != nil {
			return fmt.Errorf("get claim: %w", err)
		}
		if claim == nil || claim.Status != models.StatusPending {
			return ErrClaimNotFound
		}

		rec = &models.TrainingBonusRejected{
			ID:        uuid.NewString(),
			Claim:     *claim,
			Feedback:  feedback,
			Status:    models.StatusRejected,
			DecidedBy: actor,
			DecidedAt: s.now(),
		}
		if err := q.CreateTrainingBonusRejected(ctx, rec); err != nil {
			return fmt.Errorf("append rejected record: %w", err)
		}

		if err := q.DeleteTrainingBonusClaim(ctx, claimID); err != nil {
			return fmt.Errorf("delete claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(pipeline, "reject", claimID, err)
	}

	metrics.ClaimDecisionsTotal.WithLabelValues(pipeline, models.StatusRejected).Inc()
	s.log.Info("claim rejected",
		zap.String("pipeline", pipeline),
		zap.String("claim_id", claimID),
		zap.String("username", rec.Claim.Username),
		zap.String("actor", actor),
	)
	return rec, nil
}

// ApproveReferral credits the submitter with their own RefPer and their
// parent with the parent's own RefParentPer. The rates copied onto the
// claim are kept for display only.
func (s *ApprovalService) ApproveReferral(ctx context.Context, claimID, actor string) (*models.ReferralApproved, error) {
	const pipeline = models.PipelineReferral

	if err := requireClaimID(claimID); err != nil {
		return nil, s.fail(pipeline, "approve", claimID, err)
	}

	unlock, err := s.lockClaim(ctx, pipeline, claimID)
	if err != nil {
		return nil, s.fail(pipeline, "approve", claimID, err)
	}
	defer unlock()

	var rec *models.ReferralApproved
	err = s.repo.InTx(ctx, func(q repository.Queries) error {
		claim, err := q.GetReferralClaim(ctx, claimID)
		if err != nil {
			return fmt.Errorf("get claim: %w", err)
		}
		if claim == nil || claim.Status != models.StatusPending {
			return ErrClaimNotFound
		}
		if err := claim.Validate(); err != nil {
			return newValidationError(err)
		}

		submitter, err := q.GetUserByUsername(ctx, claim.Username)
		if err != nil {
			return fmt.Errorf("get user %q: %w", claim.Username, err)
		}
		if submitter == nil {
			return fmt.Errorf("%w: %q", ErrUserNotFound, claim.Username)
		}

		if submitter.ParentID == nil {
			return fmt.Errorf("%w: %q has no upline", ErrParentNotFound, submitter.Username)
		}
		parent, err := q.GetUserByID(ctx, *submitter.ParentID)
		if err != nil {
			return fmt.Errorf("get parent of %q: %w", submitter.Username, err)
		}
		if parent == nil {
			return fmt.Errorf("%w: id %d", ErrParentNotFound, *submitter.ParentID)
		}
		// a self-referencing upline gets both credits on one record
		if parent.ID == submitter.ID {
			parent = submitter
		}

		selfBonus := credit(claim.TransactionAmount, submitter.RefPer)
		parentBonus := credit(claim.TransactionAmount, parent.RefParentPer)

		submitter.Balance = submitter.Balance.Add(selfBonus)
		submitter.TotalPoints += claim.DirectPoint
		submitter.DirectPoints += claim.DirectPoint

		parent.Balance = parent.Balance.Add(parentBonus)
		parent.TotalPoints += claim.IndirectPoint
		parent.IndirectPoints += claim.IndirectPoint

		if err := q.UpdateUserLedger(ctx, submitter); err != nil {
			return fmt.Errorf("update user %q: %w", submitter.Username, err)
		}
		if parent != submitter {
			if err := q.UpdateUserLedger(ctx, parent); err != nil {
				return fmt.Errorf("update parent %q: %w", parent.Username, err)
			}
		}

		now := s.now()
		rec = &models.ReferralApproved{
			ID:             uuid.NewString(),
			Claim:          *claim,
			SelfBonus:      selfBonus,
			ParentBonus:    parentBonus,
			ParentUsername: parent.Username,
			DirectPoints:   claim.DirectPoint,
			IndirectPoints: claim.IndirectPoint,
			Status:         models.StatusApproved,
			DecidedBy:      actor,
			DecidedAt:      now,
		}
		if err := q.CreateReferralApproved(ctx, rec); err != nil {
			return fmt.Errorf("append approved record: %w", err)
		}

		reg := &models.PendingRegistration{
			ID:               uuid.NewString(),
			ClaimID:          claim.ID,
			ReferrerUsername: submitter.Username,
			ReferrerPin:      claim.ReferrerPin,
			PlanName:         claim.PlanName,
			PlanPrice:        claim.PlanPrice,
			DirectPoint:      claim.DirectPoint,
			IndirectPoint:    claim.IndirectPoint,
			AdvancePoints:    claim.AdvancePoints,
			RefPer:           claim.RefPer,
			RefParentPer:     claim.RefParentPer,
			CreatedAt:        now,
		}
		if err := q.CreatePendingRegistration(ctx, reg); err != nil {
			return fmt.Errorf("queue pending registration: %w", err)
		}

		if err := q.DeleteReferralClaim(ctx, claimID); err != nil {
			return fmt.Errorf("delete claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(pipeline, "approve", claimID, err)
	}

	metrics.ClaimDecisionsTotal.WithLabelValues(pipeline, models.StatusApproved).Inc()
	metrics.CreditedAmountTotal.WithLabelValues(pipeline, "self").Add(rec.SelfBonus.InexactFloat64())
	metrics.CreditedAmountTotal.WithLabelValues(pipeline, "parent").Add(rec.ParentBonus.InexactFloat64())
	s.log.Info("claim approved",
		zap.String("pipeline", pipeline),
		zap.String("claim_id", claimID),
		zap.String("username", rec.Claim.Username),
		zap.String("parent", rec.ParentUsername),
		zap.String("self_bonus", rec.SelfBonus.StringFixed(moneyPlaces)),
		zap.String("parent_bonus", rec.ParentBonus.StringFixed(moneyPlaces)),
		zap.String("actor", actor),
	)
	return rec, nil
}

func (s *ApprovalService) RejectReferral(ctx context.Context, claimID, feedback, actor string) (*models.ReferralRejected, error) {
	const pipeline = models.PipelineReferral

	if err := requireDecisionInput(claimID, feedback); err != nil {
		return nil, s.fail(pipeline, "reject", claimID, err)
	}

	unlock, err := s.lockClaim(ctx, pipeline, claimID)
	if err != nil {
		return nil, s.fail(pipeline, "reject", claimID, err)
	}
	defer unlock()

	var rec *models.ReferralRejected
	err = s.repo.InTx(ctx, func(q repository.Queries) error {
		claim, err := q.GetReferralClaim(ctx, claimID)
		if err != nil {
			return fmt.Errorf("get claim: %w", err)
		}
		if claim == nil || claim.Status != models.StatusPending {
			return ErrClaimNotFound
		}

		rec = &models.ReferralRejected{
			ID:        uuid.NewString(),
			Claim:     *claim,
			Feedback:  feedback,
			Status:    models.StatusRejected,
			DecidedBy: actor,
			DecidedAt: s.now(),
		}
		if err := q.CreateReferralRejected(ctx, rec); err != nil {
			return fmt.Errorf("append rejected record: %w", err)
		}

		if err := q.DeleteReferralClaim(ctx, claimID); err != nil {
			return fmt.Errorf("delete claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(pipeline, "reject", claimID, err)
	}

	metrics.ClaimDecisionsTotal.WithLabelValues(pipeline, models.StatusRejected).Inc()
	s.log.Info("claim rejected",
		zap.String("pipeline", pipeline),
		zap.String("claim_id", claimID),
		zap.String("username", rec.Claim.Username),
		zap.String("actor", actor),
	)
	return rec, nil
}

func (s *ApprovalService) TrainingBonusDecisions(ctx context.Context) (*TrainingBonusDecisions, error) {
	approved, err := s.repo.ListTrainingBonusApproved(ctx)
	if err != nil {
		return nil, fmt.Errorf("list approved training bonuses: %w", err)
	}
	rejected, err := s.repo.ListTrainingBonusRejected(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rejected training bonuses: %w", err)
	}

	out := &TrainingBonusDecisions{Approved: approved, Rejected: rejected}
	if out.Approved == nil {
		out.Approved = []models.TrainingBonusApproved{}
	}
	if out.Rejected == nil {
		out.Rejected = []models.TrainingBonusRejected{}
	}
	return out, nil
}

func (s *ApprovalService) ReferralDecisions(ctx context.Context) (*ReferralDecisions, error) {
	approved, err := s.repo.ListReferralApproved(ctx)
	if err != nil {
		return nil, fmt.Errorf("list approved referrals: %w", err)
	}
	rejected, err := s.repo.ListReferralRejected(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rejected referrals: %w", err)
	}

	out := &ReferralDecisions{Approved: approved, Rejected: rejected}
	if out.Approved == nil {
		out.Approved = []models.ReferralApproved{}
	}
	if out.Rejected == nil {
		out.Rejected = []models.ReferralRejected{}
	}
	return out, nil
}

func (s *ApprovalService) ListPendingRegistrations(ctx context.Context) ([]models.PendingRegistration, error) {
	regs, err := s.repo.ListPendingRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending registrations: %w", err)
	}
	if regs == nil {
		regs = []models.PendingRegistration{}
	}
	return regs, nil
}

func (s *ApprovalService) lockClaim(ctx context.Context, pipeline, claimID string) (func(), error) {
	unlock, err := s.locker.TryLock(ctx, pipeline+":"+claimID)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, ErrDecisionInProgress
		}
		return nil, fmt.Errorf("lock claim: %w", err)
	}
	return unlock, nil
}

func (s *ApprovalService) fail(pipeline, decision, claimID string, err error) error {
	reason := failureReason(err)
	metrics.ClaimDecisionErrorsTotal.WithLabelValues(pipeline, reason).Inc()

	fields := []zap.Field{
		zap.String("pipeline", pipeline),
		zap.String("decision", decision),
		zap.String("claim_id", claimID),
		zap.Error(err),
	}
	if reason == "store" {
		s.log.Error("claim decision failed", fields...)
	} else {
		s.log.Warn("claim decision refused", fields...)
	}
	return err
}

func requireClaimID(claimID string) error {
	if strings.TrimSpace(claimID) == "" {
		return &ValidationError{Field: "id", Message: "claim id is required"}
	}
	return nil
}

func requireDecisionInput(claimID, feedback string) error {
	if err := requireClaimID(claimID); err != nil {
		return err
	}
	if strings.TrimSpace(feedback) == "" {
		return &ValidationError{Field: "feedback", Message: "feedback is required when rejecting"}
	}
	return nil
}
