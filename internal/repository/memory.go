package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/25x8/bonus-approvals/internal/models"
)

// memState holds every table. Slices keep insertion order so listings
// come back in store-native order like the Postgres ORDER BY created_at.
type memState struct {
	nextUserID int64
	users      []models.User

	trainingClaims   []models.TrainingBonusClaim
	trainingApproved []models.TrainingBonusApproved
	trainingRejected []models.TrainingBonusRejected

	referralClaims   []models.ReferralClaim
	referralApproved []models.ReferralApproved
	referralRejected []models.ReferralRejected

	registrations []models.PendingRegistration
}

func (s *memState) clone() *memState {
	return &memState{
		nextUserID:       s.nextUserID,
		users:            append([]models.User(nil), s.users...),
		trainingClaims:   append([]models.TrainingBonusClaim(nil), s.trainingClaims...),
		trainingApproved: append([]models.TrainingBonusApproved(nil), s.trainingApproved...),
		trainingRejected: append([]models.TrainingBonusRejected(nil), s.trainingRejected...),
		referralClaims:   append([]models.ReferralClaim(nil), s.referralClaims...),
		referralApproved: append([]models.ReferralApproved(nil), s.referralApproved...),
		referralRejected: append([]models.ReferralRejected(nil), s.referralRejected...),
		registrations:    append([]models.PendingRegistration(nil), s.registrations...),
	}
}

// MemoryRepository keeps everything in process. Transactions run on a copy
// of the state that replaces the live one only when fn succeeds, and they
// are serialized, so a claim can never be decided twice.
type MemoryRepository struct {
	*memQueries
	mu sync.Mutex
	st *memState
}

func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{st: &memState{nextUserID: 1}}
	r.memQueries = &memQueries{mu: &r.mu, st: r.st}
	return r
}

func (r *MemoryRepository) InTx(ctx context.Context, fn func(q Queries) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := r.st.clone()
	if err := fn(&memQueries{st: work}); err != nil {
		return err
	}

	*r.st = *work
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

// memQueries locks mu per call when it is set; inside InTx the
// repository lock is already held and mu is nil.
type memQueries struct {
	mu *sync.Mutex
	st *memState
}

func (q *memQueries) lock() func() {
	if q.mu == nil {
		return func() {}
	}
	q.mu.Lock()
	return q.mu.Unlock
}

func (q *memQueries) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	defer q.lock()()

	for _, u := range q.st.users {
		if u.Username == user.Username {
			return 0, fmt.Errorf("%w: users_username_key", ErrDuplicate)
		}
		if u.Email == user.Email {
			return 0, fmt.Errorf("%w: users_email_key", ErrDuplicate)
		}
	}
	if user.ParentID != nil && q.findUser(func(u *models.User) bool { return u.ID == *user.ParentID }) == nil {
		return 0, fmt.Errorf("parent %d: %w", *user.ParentID, ErrNotFound)
	}

	stored := *user
	stored.ID = q.st.nextUserID
	q.st.nextUserID++
	q.st.users = append(q.st.users, stored)
	return stored.ID, nil
}

func (q *memQueries) findUser(match func(u *models.User) bool) *models.User {
	for i := range q.st.users {
		if match(&q.st.users[i]) {
			u := q.st.users[i]
			return &u
		}
	}
	return nil
}

func (q *memQueries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	defer q.lock()()
	return q.findUser(func(u *models.User) bool { return u.ID == id }), nil
}

func (q *memQueries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	defer q.lock()()
	return q.findUser(func(u *models.User) bool { return u.Username == username }), nil
}

func (q *memQueries) GetUserByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	defer q.lock()()
	return q.findUser(func(u *models.User) bool {
		return u.Username == usernameOrEmail || u.Email == usernameOrEmail
	}), nil
}

func (q *memQueries) ListUsers(ctx context.Context) ([]models.User, error) {
	defer q.lock()()

	users := append([]models.User(nil), q.st.users...)
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (q *memQueries) UpdateUserLedger(ctx context.Context, user *models.User) error {
	defer q.lock()()

	for i := range q.st.users {
		if q.st.users[i].ID == user.ID {
			u := &q.st.users[i]
			u.Balance = user.Balance
			u.TotalPoints = user.TotalPoints
			u.DirectPoints = user.DirectPoints
			u.IndirectPoints = user.IndirectPoints
			u.TrainingBonusBalance = user.TrainingBonusBalance
			return nil
		}
	}
	return ErrNotFound
}

func (q *memQueries) CreateTrainingBonusClaim(ctx context.Context, claim *models.TrainingBonusClaim) error {
	defer q.lock()()

	for _, c := range q.st.trainingClaims {
		if c.ID == claim.ID {
			return fmt.Errorf("%w: training_bonus_claims_pkey", ErrDuplicate)
		}
	}
	q.st.trainingClaims = append(q.st.trainingClaims, *claim)
	return nil
}

func (q *memQueries) GetTrainingBonusClaim(ctx context.Context, id string) (*models.TrainingBonusClaim, error) {
	defer q.lock()()

	for _, c := range q.st.trainingClaims {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (q *memQueries) ListPendingTrainingBonusClaims(ctx context.Context) ([]models.TrainingBonusClaim, error) {
	defer q.lock()()

	var claims []models.TrainingBonusClaim
	for _, c := range q.st.trainingClaims {
		if c.Status == models.StatusPending {
			claims = append(claims, c)
		}
	}
	return claims, nil
}

func (q *memQueries) DeleteTrainingBonusClaim(ctx context.Context, id string) error {
	defer q.lock()()

	for i, c := range q.st.trainingClaims {
		if c.ID == id {
			q.st.trainingClaims = append(q.st.trainingClaims[:i:i], q.st.trainingClaims[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (q *memQueries) CreateTrainingBonusApproved(ctx context.Context, rec *models.TrainingBonusApproved) error {
	defer q.lock()()

	if q.trainingDecided(rec.Claim.ID) {
		return fmt.Errorf("%w: training_bonus_approved_claim_id_key", ErrDuplicate)
	}
	q.st.trainingApproved = append(q.st.trainingApproved, *rec)
	return nil
}

func (q *memQueries) CreateTrainingBonusRejected(ctx context.Context, rec *models.TrainingBonusRejected) error {
	defer q.lock()()

	if q.trainingDecided(rec.Claim.ID) {
		return fmt.Errorf("%w: training_bonus_rejected_claim_id_key", ErrDuplicate)
	}
	q.st.trainingRejected = append(q.st.trainingRejected, *rec)
	return nil
}

func (q *memQueries) trainingDecided(claimID string) bool {
	for _, r := range q.st.trainingApproved {
		if r.Claim.ID == claimID {
			return true
		}
	}
	for _, r := range q.st.trainingRejected {
		if r.Claim.ID == claimID {
			return true
		}
	}
	return false
}

func (q *memQueries) ListTrainingBonusApproved(ctx context.Context) ([]models.TrainingBonusApproved, error) {
	defer q.lock()()
	return append([]models.TrainingBonusApproved(nil), q.st.trainingApproved...), nil
}

func (q *memQueries) ListTrainingBonusRejected(ctx context.Context) ([]models.TrainingBonusRejected, error) {
	defer q.lock()()
	return append([]models.TrainingBonusRejected(nil), q.st.trainingRejected...), nil
}

func (q *memQueries) CreateReferralClaim(ctx context.Context, claim *models.ReferralClaim) error {
	defer q.lock()()

	for _, c := range q.st.referralClaims {
		if c.ID == claim.ID {
			return fmt.Errorf("%w: referral_claims_pkey", ErrDuplicate)
		}
		if c.ReferrerPin == claim.ReferrerPin {
			return fmt.Errorf("%w: referral_claims_referrer_pin_key", ErrDuplicate)
		}
	}
	q.st.referralClaims = append(q.st.referralClaims, *claim)
	return nil
}

func (q *memQueries) GetReferralClaim(ctx context.Context, id string) (*models.ReferralClaim, error) {
	defer q.lock()()

	for _, c := range q.st.referralClaims {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (q *memQueries) ListPendingReferralClaims(ctx context.Context) ([]models.ReferralClaim, error) {
	defer q.lock()()

	var claims []models.ReferralClaim
	for _, c := range q.st.referralClaims {
		if c.Status == models.StatusPending {
			claims = append(claims, c)
		}
	}
	return claims, nil
}

func (q *memQueries) DeleteReferralClaim(ctx context.Context, id string) error {
	defer q.lock()()

	for i, c := range q.st.referralClaims {
		if c.ID == id {
			q.st.referralClaims = append(q.st.referralClaims[:i:i], q.st.referralClaims[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (q *memQueries) CreateReferralApproved(ctx context.Context, rec *models.ReferralApproved) error {
	defer q.lock()()

	if q.referralDecided(rec.Claim.ID) {
		return fmt.Errorf("%w: referral_approved_claim_id_key", ErrDuplicate)
	}
	q.st.referralApproved = append(q.st.referralApproved, *rec)
	return nil
}

func (q *memQueries) CreateReferralRejected(ctx context.Context, rec *models.ReferralRejected) error {
	defer q.lock()()

	if q.referralDecided(rec.Claim.ID) {
		return fmt.Errorf("%w: referral_rejected_claim_id_key", ErrDuplicate)
	}
	q.st.referralRejected = append(q.st.referralRejected, *rec)
	return nil
}

func (q *memQueries) referralDecided(claimID string) bool {
	for _, r := range q.st.referralApproved {
		if r.Claim.ID == claimID {
			return true
		}
	}
	for _, r := range q.st.referralRejected {
		if r.Claim.ID == claimID {
			return true
		}
	}
	return false
}

func (q *memQueries) ListReferralApproved(ctx context.Context) ([]models.ReferralApproved, error) {
	defer q.lock()()
	return append([]models.ReferralApproved(nil), q.st.referralApproved...), nil
}

func (q *memQueries) ListReferralRejected(ctx context.Context) ([]models.ReferralRejected, error) {
	defer q.lock()()
	return append([]models.ReferralRejected(nil), q.st.referralRejected...), nil
}

func (q *memQueries) CreatePendingRegistration(ctx context.Context, reg *models.PendingRegistration) error {
	defer q.lock()()

	for _, r := range q.st.registrations {
		if r.ClaimID == reg.ClaimID {
			return fmt.Errorf("%w: pending_registrations_claim_id_key", ErrDuplicate)
		}
	}
	q.st.registrations = append(q.st.registrations, *reg)
	return nil
}

func (q *memQueries) ListPendingRegistrations(ctx context.Context) ([]models.PendingRegistration, error) {
	defer q.lock()()
	return append([]models.PendingRegistration(nil), q.st.registrations...), nil
}

func (q *memQueries) CountPendingClaims(ctx context.Context) (map[string]int64, error) {
	defer q.lock()()

	counts := map[string]int64{
		models.PipelineTrainingBonus: 0,
		models.PipelineReferral:      0,
	}
	for _, c := range q.st.trainingClaims {
		if c.Status == models.StatusPending {
			counts[models.PipelineTrainingBonus]++
		}
	}
	for _, c := range q.st.referralClaims {
		if c.Status == models.StatusPending {
			counts[models.PipelineReferral]++
		}
	}
	return counts, nil
}
