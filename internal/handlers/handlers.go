package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/25x8/bonus-approvals/internal/middleware"
	"github.com/25x8/bonus-approvals/internal/models"
	"github.com/25x8/bonus-approvals/internal/service"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

type Handler struct {
	Approvals *service.ApprovalService
	Claims    *service.ClaimService
	Users     *service.UserService
	JWTSecret string
	Log       *zap.Logger
}

func NewHandler(approvals *service.ApprovalService, claims *service.ClaimService, users *service.UserService, jwtSecret string, log *zap.Logger) *Handler {
	return &Handler{
		Approvals: approvals,
		Claims:    claims,
		Users:     users,
		JWTSecret: jwtSecret,
		Log:       log,
	}
}

func RegisterRoutes(r chi.Router, h *Handler, jwtConfig *middleware.JWTConfig) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/authenticate", h.Authenticate)
		r.Get("/users/fullname/{username}", h.GetFullName)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(jwtConfig))

			r.Post("/claims/training-bonus", h.SubmitTrainingBonusClaim)
			r.Post("/claims/referral", h.SubmitReferralClaim)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))

				r.Route("/approvals", func(r chi.Router) {
					r.Get("/pending-approvals", h.ListPendingTrainingBonus)
					r.Post("/approve", h.ApproveTrainingBonus)
					r.Post("/reject", h.RejectTrainingBonus)
					r.Get("/decisions", h.TrainingBonusDecisions)

					r.Get("/referral/pending-approvals", h.ListPendingReferral)
					r.Post("/referral/approve", h.ApproveReferral)
					r.Post("/referral/reject", h.RejectReferral)
					r.Get("/referral/decisions", h.ReferralDecisions)
				})

				r.Get("/registrations/pending", h.ListPendingRegistrations)
				r.Get("/users", h.ListUsers)
				r.Post("/users", h.RegisterUser)
			})
		})
	})
}

type decisionRequest struct {
	ID       string `json:"id" validate:"required"`
	Feedback string `json:"feedback"`
}

type authRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

type authResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	Token    string `json:"token,omitempty"`
	Error    string `json:"error,omitempty"`
}

type messageResponse struct {
	Message string      `json:"message"`
	Record  interface{} `json:"record,omitempty"`
}

func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if err := models.ValidateStruct(&req); err != nil {
		http.Error(w, "Username or email and password are required", http.StatusBadRequest)
		return
	}

	user, ok, err := h.Users.Authenticate(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		h.Log.Error("authenticate", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, authResponse{Success: false, Error: "Server error"})
		return
	}

	if !ok {
		writeJSON(w, http.StatusOK, authResponse{Success: false})
		return
	}

	token, err := middleware.GenerateToken(user.Username, user.Role, h.JWTSecret)
	if err != nil {
		h.Log.Error("generate token", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, authResponse{Success: false, Error: "Server error"})
		return
	}

	middleware.SetAuthCookie(w, token)
	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, authResponse{
		Success:  true,
		Username: user.Username,
		Role:     user.Role,
		Token:    token,
	})
}

func (h *Handler) GetFullName(w http.ResponseWriter, r *http.Request) {
	fullName, err := h.Users.GetFullName(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fullName": fullName})
}

func (h *Handler) ListPendingTrainingBonus(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Approvals.ListPendingTrainingBonus(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *Handler) ApproveTrainingBonus(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDecision(w, r)
	if !ok {
		return
	}

	actor, _ := middleware.GetUsername(r.Context())
	rec, err := h.Approvals.ApproveTrainingBonus(r.Context(), req.ID, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Training bonus approved", Record: rec})
}

func (h *Handler) RejectTrainingBonus(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDecision(w, r)
	if !ok {
		return
	}

	actor, _ := middleware.GetUsername(r.Context())
	rec, err := h.Approvals.RejectTrainingBonus(r.Context(), req.ID, req.Feedback, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Training bonus rejected", Record: rec})
}

func (h *Handler) TrainingBonusDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.Approvals.TrainingBonusDecisions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}

func (h *Handler) ListPendingReferral(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Approvals.ListPendingReferral(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *Handler) ApproveReferral(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDecision(w, r)
	if !ok {
		return
	}

	actor, _ := middleware.GetUsername(r.Context())
	rec, err := h.Approvals.ApproveReferral(r.Context(), req.ID, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Referral approved", Record: rec})
}

func (h *Handler) RejectReferral(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDecision(w, r)
	if !ok {
		return
	}

	actor, _ := middleware.GetUsername(r.Context())
	rec, err := h.Approvals.RejectReferral(r.Context(), req.ID, req.Feedback, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Referral rejected", Record: rec})
}

func (h *Handler) ReferralDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.Approvals.ReferralDecisions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}

func (h *Handler) ListPendingRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.Approvals.ListPendingRegistrations(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req service.NewUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	user, err := h.Users.RegisterUser(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) SubmitTrainingBonusClaim(w http.ResponseWriter, r *http.Request) {
	var claim models.TrainingBonusClaim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	// members can only claim for themselves
	claim.Username, _ = middleware.GetUsername(r.Context())

	created, err := h.Claims.SubmitTrainingBonusClaim(r.Context(), claim)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, created)
}

func (h *Handler) SubmitReferralClaim(w http.ResponseWriter, r *http.Request) {
	var claim models.ReferralClaim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	claim.Username, _ = middleware.GetUsername(r.Context())

	created, err := h.Claims.SubmitReferralClaim(r.Context(), claim)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, created)
}

func decodeDecision(w http.ResponseWriter, r *http.Request) (*decisionRequest, bool) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return nil, false
	}

	if err := models.ValidateStruct(&req); err != nil {
		http.Error(w, "Claim id is required", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrClaimNotFound):
		http.Error(w, "Claim not found", http.StatusNotFound)
	case errors.Is(err, service.ErrUserNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	case errors.Is(err, service.ErrParentNotFound):
		http.Error(w, "Parent user not found", http.StatusNotFound)
	case errors.Is(err, service.ErrDecisionInProgress),
		errors.Is(err, service.ErrDuplicateClaim),
		errors.Is(err, service.ErrDuplicateUser):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.Log.Error("request failed", zap.Error(err))
		http.Error(w, "Server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
