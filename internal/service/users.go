package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/25x8/bonus-approvals/internal/models"
	"github.com/25x8/bonus-approvals/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when no account matches, so a miss costs
// the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

type NewUser struct {
	FullName       string          `json:"fullName"`
	Username       string          `json:"username"`
	Email          string          `json:"email"`
	Password       string          `json:"password"`
	Role           string          `json:"role"`
	ParentUsername string          `json:"parentUsername"`
	RefPer         decimal.Decimal `json:"refPer"`
	RefParentPer   decimal.Decimal `json:"refParentPer"`
}

type UserService struct {
	repo     repository.Repository
	log      *zap.Logger
	hashCost int
	now      func() time.Time
}

func NewUserService(repo repository.Repository, log *zap.Logger) *UserService {
	return &UserService{
		repo:     repo,
		log:      log,
		hashCost: bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) GetFullName(ctx context.Context, username string) (string, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("get user %q: %w", username, err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	return user.FullName, nil
}

// Authenticate matches login against username or email and checks the
// password against the stored bcrypt hash. A false result with a nil
// error means the credentials were wrong.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*models.User, bool, error) {
	user, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, false, fmt.Errorf("find user %q: %w", login, err)
	}

	if user == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Info("authentication failed", zap.String("username", user.Username))
		return nil, false, nil
	}

	return user, true, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (s *UserService) RegisterUser(ctx context.Context, in NewUser) (*models.User, error) {
	if err := models.ValidateVar(in.Password, "min=8"); err != nil {
		return nil, &ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}

	role := in.Role
	if role == "" {
		role = models.RoleMember
	}

	user := &models.User{
		FullName:             strings.TrimSpace(in.FullName),
		Username:             strings.TrimSpace(in.Username),
		Email:                strings.TrimSpace(in.Email),
		Role:                 role,
		Balance:              decimal.Zero,
		TrainingBonusBalance: decimal.Zero,
		RefPer:               in.RefPer,
		RefParentPer:         in.RefParentPer,
		CreatedAt:            s.now(),
	}
	if err := user.Validate(); err != nil {
		return nil, newValidationError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	err = s.repo.InTx(ctx, func(q repository.Queries) error {
		if in.ParentUsername != "" {
			parent, err := q.GetUserByUsername(ctx, in.ParentUsername)
			if err != nil {
				return fmt.Errorf("get parent %q: %w", in.ParentUsername, err)
			}
			if parent == nil {
				return fmt.Errorf("%w: %q", ErrParentNotFound, in.ParentUsername)
			}
			user.ParentID = &parent.ID
		}

		id, err := q.CreateUser(ctx, user)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateUser
			}
			return fmt.Errorf("create user: %w", err)
		}
		user.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("username", user.Username), zap.String("role", user.Role))
	return user, nil
}
