package service

import (
	"context"
	"testing"

	"github.com/25x8/bonus-approvals/internal/models"
	"github.com/25x8/bonus-approvals/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(repo repository.Repository) *UserService {
	svc := NewUserService(repo, zap.NewNop())
	svc.hashCost = bcrypt.MinCost
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(repository.NewMemoryRepository())

	user, err := svc.RegisterUser(ctx, NewUser{
		FullName: "Rahim Uddin",
		Username: "rahim",
		Email:    "rahim@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.Equal(t, models.RoleMember, user.Role)
	require.NotEqual(t, "correct-horse", user.PasswordHash)

	tests := []struct {
		name     string
		login    string
		password string
		wantOK   bool
	}{
		{"by username", "rahim", "correct-horse", true},
		{"by email", "rahim@example.com", "correct-horse", true},
		{"wrong password", "rahim", "battery-staple", false},
		{"unknown login", "karim", "correct-horse", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := svc.Authenticate(ctx, tt.login, tt.password)
			require.NoError(t, err)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.Equal(t, "rahim", got.Username)
			} else {
				require.Nil(t, got)
			}
		})
	}
}

func TestGetFullName(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc := newUserService(repo)

	seedUser(t, repo, models.User{Username: "sumi", FullName: "Sumaiya Akter"})

	name, err := svc.GetFullName(ctx, "sumi")
	require.NoError(t, err)
	require.Equal(t, "Sumaiya Akter", name)

	_, err = svc.GetFullName(ctx, "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestRegisterUserWithUpline(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc := newUserService(repo)

	parent := seedUser(t, repo, models.User{Username: "upline"})

	user, err := svc.RegisterUser(ctx, NewUser{
		FullName:       "Down Line",
		Username:       "downline",
		Email:          "down@example.com",
		Password:       "12345678",
		ParentUsername: "upline",
		RefPer:         decimal.RequireFromString("0.1"),
		RefParentPer:   decimal.RequireFromString("0.05"),
	})
	require.NoError(t, err)
	require.NotNil(t, user.ParentID)
	require.Equal(t, parent.ID, *user.ParentID)

	stored := getUser(t, repo, "downline")
	requireDecimal(t, "0.1", stored.RefPer)
	requireDecimal(t, "0.05", stored.RefParentPer)

	_, err = svc.RegisterUser(ctx, NewUser{
		FullName:       "Lost Child",
		Username:       "lost",
		Email:          "lost@example.com",
		Password:       "12345678",
		ParentUsername: "missing",
	})
	require.ErrorIs(t, err, ErrParentNotFound)
}

func TestRegisterUserRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc := newUserService(repo)

	valid := NewUser{FullName: "Tania", Username: "tania", Email: "tania@example.com", Password: "12345678"}
	_, err := svc.RegisterUser(ctx, valid)
	require.NoError(t, err)

	tests := []struct {
		name      string
		mutate    func(u *NewUser)
		wantField string
		wantErr   error
	}{
		{"short password", func(u *NewUser) { u.Username = "a1"; u.Email = "a1@example.com"; u.Password = "short" }, "password", nil},
		{"bad email", func(u *NewUser) { u.Username = "a2"; u.Email = "not-an-email" }, "Email", nil},
		{"unknown role", func(u *NewUser) { u.Username = "a3"; u.Email = "a3@example.com"; u.Role = "root" }, "Role", nil},
		{"rate above one", func(u *NewUser) {
			u.Username = "a4"
			u.Email = "a4@example.com"
			u.RefPer = decimal.RequireFromString("1.5")
		}, "RefPer", nil},
		{"rate with five places", func(u *NewUser) {
			u.Username = "a5"
			u.Email = "a5@example.com"
			u.RefParentPer = decimal.RequireFromString("0.05005")
		}, "RefParentPer", nil},
		{"duplicate username", func(u *NewUser) { u.Email = "other@example.com" }, "", ErrDuplicateUser},
		{"duplicate email", func(u *NewUser) { u.Username = "other" }, "", ErrDuplicateUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := svc.RegisterUser(ctx, in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, tt.wantField, vErr.Field)
		})
	}

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestListUsersEmpty(t *testing.T) {
	svc := newUserService(repository.NewMemoryRepository())

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.NotNil(t, users)
	require.Empty(t, users)
}
