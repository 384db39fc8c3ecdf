package service

import (
	"context"
	"testing"
	"time"

	"github.com/25x8/bonus-approvals/internal/metrics"
	"github.com/25x8/bonus-approvals/internal/models"
	"github.com/25x8/bonus-approvals/internal/repository"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubmitTrainingBonusClaim(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	claims := NewClaimService(repo, zap.NewNop())
	approvals, _ := newApprovalService(repo)

	seedUser(t, repo, models.User{Username: "tanvir"})

	created, err := claims.SubmitTrainingBonusClaim(ctx, models.TrainingBonusClaim{
		Username:          "tanvir",
		TransactionID:     "TX-1001",
		TransactionAmount: decimal.RequireFromString("120.50"),
		Gateway:           "rocket",
		Image:             "uploads/tx-1001.png",
		Status:            models.StatusApproved,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, models.StatusPending, created.Status)
	require.False(t, created.CreatedAt.IsZero())

	pending, err := approvals.ListPendingTrainingBonus(ctx)
	require.NoError(t, err)
	require.Equal(t, []models.TrainingBonusClaim{*created}, pending)
}

func TestSubmitTrainingBonusClaimRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	claims := NewClaimService(repo, zap.NewNop())

	seedUser(t, repo, models.User{Username: "tanvir"})

	valid := models.TrainingBonusClaim{
		Username:          "tanvir",
		TransactionID:     "TX-1002",
		TransactionAmount: decimal.RequireFromString("10"),
		Gateway:           "rocket",
		Image:             "uploads/tx-1002.png",
	}

	zero := valid
	zero.TransactionAmount = decimal.Zero
	_, err := claims.SubmitTrainingBonusClaim(ctx, zero)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "TransactionAmount", vErr.Field)

	noImage := valid
	noImage.Image = ""
	_, err = claims.SubmitTrainingBonusClaim(ctx, noImage)
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "Image", vErr.Field)

	stranger := valid
	stranger.Username = "stranger"
	_, err = claims.SubmitTrainingBonusClaim(ctx, stranger)
	require.ErrorIs(t, err, ErrUserNotFound)

	counts, err := repo.CountPendingClaims(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), counts[models.PipelineTrainingBonus])
}

func TestSubmitReferralClaim(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	claims := NewClaimService(repo, zap.NewNop())

	seedUser(t, repo, models.User{Username: "rupa"})

	claim := models.ReferralClaim{
		Username:          "rupa",
		TransactionID:     "RX-2001",
		TransactionAmount: decimal.RequireFromString("500"),
		Gateway:           "bkash",
		PlanName:          "Silver",
		PlanPrice:         decimal.RequireFromString("500"),
		DirectPoint:       4,
		IndirectPoint:     2,
		RefPer:            decimal.RequireFromString("0.1"),
		RefParentPer:      decimal.RequireFromString("0.05"),
		ReferrerPin:       "PIN-2001",
		ImagePath:         "rx-2001.jpg",
	}

	created, err := claims.SubmitReferralClaim(ctx, claim)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, created.Status)

	// the referrer pin names one new registration
	again := claim
	again.TransactionID = "RX-2002"
	_, err = claims.SubmitReferralClaim(ctx, again)
	require.ErrorIs(t, err, ErrDuplicateClaim)

	greedy := claim
	greedy.ReferrerPin = "PIN-2003"
	greedy.RefParentPer = decimal.RequireFromString("1.2")
	_, err = claims.SubmitReferralClaim(ctx, greedy)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "RefParentPer", vErr.Field)

	counts, err := repo.CountPendingClaims(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[models.PipelineReferral])
}

func TestBacklogMonitorRefresh(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	seedUser(t, repo, models.User{Username: "uma"})
	seedTrainingClaim(t, repo, "uma", "10")
	seedTrainingClaim(t, repo, "uma", "20")
	seedReferralClaim(t, repo, "uma", "30")

	monitor := NewBacklogMonitor(repo, time.Hour, zap.NewNop())
	require.NoError(t, monitor.Refresh(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.PendingClaims.WithLabelValues(models.PipelineTrainingBonus)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.PendingClaims.WithLabelValues(models.PipelineReferral)))

	monitor.Start()
	monitor.Stop()
}

func TestSubmitClaimsRejectAmountsTheLedgerCannotHold(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	claims := NewClaimService(repo, zap.NewNop())

	seedUser(t, repo, models.User{Username: "sadia"})

	training := models.TrainingBonusClaim{
		Username:      "sadia",
		TransactionID: "TX-3001",
		Gateway:       "bkash",
		Image:         "uploads/tx-3001.png",
	}
	for _, tc := range []struct {
		amount string
		ok     bool
	}{
		{"0.001", false},
		{"12.345", false},
		{"1000000000000", false},
		{"1000000000000.00", false},
		{"12.34", true},
		{"12.340", true},
		{"999999999999.99", true},
	} {
		c := training
		c.TransactionAmount = decimal.RequireFromString(tc.amount)
		created, err := claims.SubmitTrainingBonusClaim(ctx, c)
		if tc.ok {
			require.NoError(t, err, tc.amount)
			require.True(t, c.TransactionAmount.Equal(created.TransactionAmount), tc.amount)
			continue
		}
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, tc.amount)
		require.Equal(t, "TransactionAmount", vErr.Field)
		require.Contains(t, vErr.Message, "money")
	}

	referral := models.ReferralClaim{
		Username:          "sadia",
		TransactionID:     "RX-3001",
		TransactionAmount: decimal.RequireFromString("100"),
		Gateway:           "nagad",
		PlanName:          "Bronze",
		PlanPrice:         decimal.RequireFromString("100"),
		RefPer:            decimal.RequireFromString("0.1"),
		RefParentPer:      decimal.RequireFromString("0.05"),
		ReferrerPin:       "PIN-3001",
		ImagePath:         "rx-3001.jpg",
	}

	tests := []struct {
		name      string
		mutate    func(c *models.ReferralClaim)
		wantField string
	}{
		{"plan price sub-cent", func(c *models.ReferralClaim) { c.PlanPrice = decimal.RequireFromString("99.999") }, "PlanPrice"},
		{"rate with five places", func(c *models.ReferralClaim) { c.RefPer = decimal.RequireFromString("0.12345") }, "RefPer"},
		{"parent rate with five places", func(c *models.ReferralClaim) { c.RefParentPer = decimal.RequireFromString("0.00001") }, "RefParentPer"},
		{"amount sub-cent", func(c *models.ReferralClaim) { c.TransactionAmount = decimal.RequireFromString("100.005") }, "TransactionAmount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := referral
			tt.mutate(&c)
			_, err := claims.SubmitReferralClaim(ctx, c)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, tt.wantField, vErr.Field)
		})
	}

	fine := referral
	fine.RefPer = decimal.RequireFromString("0.1234")
	_, err := claims.SubmitReferralClaim(ctx, fine)
	require.NoError(t, err)
}
