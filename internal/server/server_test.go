package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/25x8/bonus-approvals/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRouterWithMemoryStore(t *testing.T) {
	uploads := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "proof.png"), []byte("png"), 0o600))

	cfg := &config.Config{
		RunAddress:          ":0",
		JWTSecret:           "test-secret",
		UploadsDir:          uploads,
		TrainingBonusRate:   decimal.RequireFromString("0.5"),
		TrainingBonusPoints: 10,
		LockTTL:             time.Second,
		BacklogInterval:     time.Minute,
	}
	srv := NewServer(cfg, zap.NewNop())
	require.NoError(t, srv.Init(context.Background()))
	t.Cleanup(func() { require.NoError(t, srv.Shutdown(context.Background())) })

	router := srv.Router()

	tests := []struct {
		path string
		want int
	}{
		{"/metrics", http.StatusOK},
		{"/uploads/proof.png", http.StatusOK},
		{"/uploads/missing.png", http.StatusNotFound},
		{"/api/users/fullname/nobody", http.StatusNotFound},
		{"/api/approvals/pending-approvals", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		require.Equal(t, tt.want, rec.Code, tt.path)
	}
}
