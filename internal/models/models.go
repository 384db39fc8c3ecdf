package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// amounts go out as JSON numbers; quoted strings are still accepted on input
	decimal.MarshalJSONWithoutQuotes = true
}

type User struct {
	ID                   int64           `json:"id"`
	FullName             string          `json:"fullName" validate:"required"`
	Username             string          `json:"username" validate:"required"`
	Email                string          `json:"email" validate:"required,email"`
	PasswordHash         string          `json:"-"`
	Role                 string          `json:"role" validate:"oneof=admin member"`
	Balance              decimal.Decimal `json:"balance" validate:"gte=0,money"`
	TotalPoints          int64           `json:"totalPoints" validate:"gte=0"`
	DirectPoints         int64           `json:"directPoints" validate:"gte=0"`
	IndirectPoints       int64           `json:"indirectPoints" validate:"gte=0"`
	TrainingBonusBalance decimal.Decimal `json:"trainingBonusBalance" validate:"gte=0,money"`
	ParentID             *int64          `json:"parentId,omitempty"`
	RefPer               decimal.Decimal `json:"refPer" validate:"gte=0,lte=1,rate"`
	RefParentPer         decimal.Decimal `json:"refParentPer" validate:"gte=0,lte=1,rate"`
	CreatedAt            time.Time       `json:"createdAt"`
}

type TrainingBonusClaim struct {
	ID                string          `json:"id"`
	Username          string          `json:"username" validate:"required"`
	TransactionID     string          `json:"transactionId" validate:"required"`
	TransactionAmount decimal.Decimal `json:"transactionAmount" validate:"gt=0,money"`
	Gateway           string          `json:"gateway" validate:"required"`
	Image             string          `json:"image" validate:"required"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"createdAt"`
}

type ReferralClaim struct {
	ID                string          `json:"id"`
	Username          string          `json:"username" validate:"required"`
	TransactionID     string          `json:"transactionId" validate:"required"`
	TransactionAmount decimal.Decimal `json:"transactionAmount" validate:"gt=0,money"`
	Gateway           string          `json:"gateway" validate:"required"`
	PlanName          string          `json:"planName" validate:"required"`
	PlanPrice         decimal.Decimal `json:"planPRICE" validate:"gte=0,money"`
	DirectPoint       int64           `json:"DirectPoint" validate:"gte=0"`
	IndirectPoint     int64           `json:"IndirectPoint" validate:"gte=0"`
	AdvancePoints     int64           `json:"advancePoints" validate:"gte=0"`
	RefPer            decimal.Decimal `json:"refPer" validate:"gte=0,lte=1,rate"`
	RefParentPer      decimal.Decimal `json:"refParentPer" validate:"gte=0,lte=1,rate"`
	ReferrerPin       string          `json:"referrerPin" validate:"required"`
	ImagePath         string          `json:"imagePath" validate:"required"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"createdAt"`
}

type TrainingBonusApproved struct {
	ID        string             `json:"id"`
	Claim     TrainingBonusClaim `json:"claim"`
	Bonus     decimal.Decimal    `json:"bonus"`
	Points    int64              `json:"points"`
	Status    string             `json:"status"`
	DecidedBy string             `json:"decidedBy"`
	DecidedAt time.Time          `json:"decidedAt"`
}

type TrainingBonusRejected struct {
	ID        string             `json:"id"`
	Claim     TrainingBonusClaim `json:"claim"`
	Feedback  string             `json:"feedback"`
	Status    string             `json:"status"`
	DecidedBy string             `json:"decidedBy"`
	DecidedAt time.Time          `json:"decidedAt"`
}

type ReferralApproved struct {
	ID             string          `json:"id"`
	Claim          ReferralClaim   `json:"claim"`
	SelfBonus      decimal.Decimal `json:"selfBonus"`
	ParentBonus    decimal.Decimal `json:"parentBonus"`
	ParentUsername string          `json:"parentUsername"`
	DirectPoints   int64           `json:"directPoints"`
	IndirectPoints int64           `json:"indirectPoints"`
	Status         string          `json:"status"`
	DecidedBy      string          `json:"decidedBy"`
	DecidedAt      time.Time       `json:"decidedAt"`
}

// ReferralRejected keeps the claim snapshot, including the commission
// rates the submitter asked for, for audit.
type ReferralRejected struct {
	ID        string        `json:"id"`
	Claim     ReferralClaim `json:"claim"`
	Feedback  string        `json:"feedback"`
	Status    string        `json:"status"`
	DecidedBy string        `json:"decidedBy"`
	DecidedAt time.Time     `json:"decidedAt"`
}

// PendingRegistration is queued when a referral is approved and consumed
// later by the member registration flow.
type PendingRegistration struct {
	ID               string          `json:"id"`
	ClaimID          string          `json:"claimId"`
	ReferrerUsername string          `json:"referrerUsername"`
	ReferrerPin      string          `json:"referrerPin"`
	PlanName         string          `json:"planName"`
	PlanPrice        decimal.Decimal `json:"planPRICE"`
	DirectPoint      int64           `json:"DirectPoint"`
	IndirectPoint    int64           `json:"IndirectPoint"`
	AdvancePoints    int64           `json:"advancePoints"`
	RefPer           decimal.Decimal `json:"refPer"`
	RefParentPer     decimal.Decimal `json:"refParentPer"`
	CreatedAt        time.Time       `json:"createdAt"`
}

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

const (
	PipelineTrainingBonus = "training_bonus"
	PipelineReferral      = "referral"
)
