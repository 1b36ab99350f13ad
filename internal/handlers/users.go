package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// UserCreator stores new credentials
type UserCreator interface {
	CreateUser(ctx context.Context, username, email, password string) (*models.User, error)
}

type UserHandler struct {
	users  UserCreator
	logger *slog.Logger
}

func NewUserHandler(users UserCreator, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// CreateUserRequest represents the request body for POST /users
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

// UserResponse never carries the password hash
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Create handles POST /users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		var fe *FieldError
		if errors.As(err, &fe) {
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_failed", fe.Message, fe.Field)
			return
		}
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		var policyErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &policyErr):
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "weak_password", "Password does not meet the password policy", policyErr.Error())
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid username")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Username already exists")
		default:
			pkghttp.WriteInternalError(w, "Server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}
