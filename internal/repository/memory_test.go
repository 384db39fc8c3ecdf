package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/25x8/bonus-approvals/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newUser(username string, createdAt time.Time) *models.User {
	return &models.User{
		FullName:  username,
		Username:  username,
		Email:     username + "@example.com",
		Role:      models.RoleMember,
		Balance:   decimal.Zero,
		CreatedAt: createdAt,
	}
}

func TestMemoryInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	id, err := repo.CreateUser(ctx, newUser("ava", time.Now()))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = repo.InTx(ctx, func(q Queries) error {
		u, err := q.GetUserByID(ctx, id)
		require.NoError(t, err)
		u.Balance = decimal.NewFromInt(100)
		require.NoError(t, q.UpdateUserLedger(ctx, u))

		require.NoError(t, q.CreateTrainingBonusClaim(ctx, &models.TrainingBonusClaim{ID: "c1", Username: "ava", Status: models.StatusPending}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	u, err := repo.GetUserByID(ctx, id)
	require.NoError(t, err)
	require.True(t, u.Balance.IsZero())

	claim, err := repo.GetTrainingBonusClaim(ctx, "c1")
	require.NoError(t, err)
	require.Nil(t, claim)
}

func TestMemoryInTxCommits(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	id, err := repo.CreateUser(ctx, newUser("ben", time.Now()))
	require.NoError(t, err)
	require.NoError(t, repo.CreateTrainingBonusClaim(ctx, &models.TrainingBonusClaim{ID: "c1", Username: "ben", Status: models.StatusPending}))

	err = repo.InTx(ctx, func(q Queries) error {
		u, err := q.GetUserByID(ctx, id)
		if err != nil {
			return err
		}
		u.Balance = decimal.NewFromInt(7)
		u.TotalPoints = 3
		if err := q.UpdateUserLedger(ctx, u); err != nil {
			return err
		}
		return q.DeleteTrainingBonusClaim(ctx, "c1")
	})
	require.NoError(t, err)

	u, err := repo.GetUserByUsername(ctx, "ben")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(7).Equal(u.Balance))
	require.Equal(t, int64(3), u.TotalPoints)

	counts, err := repo.CountPendingClaims(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{models.PipelineTrainingBonus: 0, models.PipelineReferral: 0}, counts)
}

func TestMemoryInTxCanceledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := repo.InTx(ctx, func(q Queries) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := repo.CreateUser(ctx, newUser("cat", base))
	require.NoError(t, err)

	child := newUser("dan", base.Add(time.Hour))
	child.ParentID = &first
	_, err = repo.CreateUser(ctx, child)
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, newUser("cat", base))
	require.ErrorIs(t, err, ErrDuplicate)

	sameEmail := newUser("eve", base)
	sameEmail.Email = "cat@example.com"
	_, err = repo.CreateUser(ctx, sameEmail)
	require.ErrorIs(t, err, ErrDuplicate)

	orphan := newUser("fay", base)
	missing := int64(999)
	orphan.ParentID = &missing
	_, err = repo.CreateUser(ctx, orphan)
	require.ErrorIs(t, err, ErrNotFound)

	byEmail, err := repo.GetUserByLogin(ctx, "dan@example.com")
	require.NoError(t, err)
	require.Equal(t, "dan", byEmail.Username)

	none, err := repo.GetUserByUsername(ctx, "zed")
	require.NoError(t, err)
	require.Nil(t, none)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "dan", users[0].Username)
	require.Equal(t, "cat", users[1].Username)

	require.ErrorIs(t, repo.UpdateUserLedger(ctx, &models.User{ID: 42}), ErrNotFound)
}

func TestMemoryClaimsAndDecisions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.CreateTrainingBonusClaim(ctx, &models.TrainingBonusClaim{ID: id, Status: models.StatusPending}))
	}
	require.ErrorIs(t, repo.CreateTrainingBonusClaim(ctx, &models.TrainingBonusClaim{ID: "a"}), ErrDuplicate)

	require.NoError(t, repo.DeleteTrainingBonusClaim(ctx, "b"))
	require.ErrorIs(t, repo.DeleteTrainingBonusClaim(ctx, "b"), ErrNotFound)

	pending, err := repo.ListPendingTrainingBonusClaims(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "a", pending[0].ID)
	require.Equal(t, "c", pending[1].ID)

	claim := models.TrainingBonusClaim{ID: "a"}
	require.NoError(t, repo.CreateTrainingBonusApproved(ctx, &models.TrainingBonusApproved{ID: "r1", Claim: claim}))
	require.ErrorIs(t, repo.CreateTrainingBonusRejected(ctx, &models.TrainingBonusRejected{ID: "r2", Claim: claim}), ErrDuplicate)

	require.NoError(t, repo.CreateReferralClaim(ctx, &models.ReferralClaim{ID: "x", ReferrerPin: "p1", Status: models.StatusPending}))
	require.ErrorIs(t, repo.CreateReferralClaim(ctx, &models.ReferralClaim{ID: "y", ReferrerPin: "p1"}), ErrDuplicate)

	require.NoError(t, repo.CreatePendingRegistration(ctx, &models.PendingRegistration{ID: "g1", ClaimID: "x"}))
	require.ErrorIs(t, repo.CreatePendingRegistration(ctx, &models.PendingRegistration{ID: "g2", ClaimID: "x"}), ErrDuplicate)

	counts, err := repo.CountPendingClaims(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), counts[models.PipelineTrainingBonus])
	require.Equal(t, int64(1), counts[models.PipelineReferral])
}
