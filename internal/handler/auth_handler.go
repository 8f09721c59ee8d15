package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/mansoorceksport/freightdesk/internal/middleware"
	"github.com/mansoorceksport/freightdesk/internal/service"
)

// LoginService exchanges a Firebase ID token for a service token
type LoginService interface {
	Login(ctx context.Context, firebaseToken string) (*service.LoginResult, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth LoginService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth LoginService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// LoginRequest carries the Firebase ID token when it is not sent as a bearer header
type LoginRequest struct {
	IDToken string `json:"id_token"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Token       string         `json:"token"`
	ExpiresAt   time.Time      `json:"expires_at"`
	IsNewClient bool           `json:"is_new_client"`
	Client      *domain.Client `json:"client"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	token := middleware.BearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" && len(c.Body()) > 0 {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return domain.NewValidationError("invalid request body")
		}
		token = req.IDToken
	}

	result, err := h.auth.Login(c.UserContext(), token)
	if err != nil {
		return err
	}

	message := "welcome back"
	if result.IsNewClient {
		message = "account created"
	}
	return okMessage(c, fiber.StatusOK, message, LoginResponse{
		Token:       result.Token,
		ExpiresAt:   result.ExpiresAt,
		IsNewClient: result.IsNewClient,
		Client:      result.Client,
	})
}
