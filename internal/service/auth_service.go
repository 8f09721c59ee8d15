package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mansoorceksport/freightdesk/internal/config"
	"github.com/mansoorceksport/freightdesk/internal/domain"
)

// FirebaseAuthClient defines the interface for Firebase Auth operations
// This allows mocking for tests
type FirebaseAuthClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthService exchanges Firebase ID tokens for service tokens
type AuthService struct {
	clients    domain.ClientRepository
	authClient FirebaseAuthClient
	jwtConfig  config.JWTConfig
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(clients domain.ClientRepository, authClient FirebaseAuthClient, jwtConfig config.JWTConfig) *AuthService {
	return &AuthService{
		clients:    clients,
		authClient: authClient,
		jwtConfig:  jwtConfig,
		now:        time.Now,
	}
}

// LoginResult is the signed-in client and its service token
type LoginResult struct {
	Client      *domain.Client
	Token       string
	ExpiresAt   time.Time
	IsNewClient bool
}

// Login verifies the Firebase token and signs a service token.
// Unknown users get a client account; pre-provisioned accounts are linked by email.
// Both need a verified email, otherwise any Firebase sign-up could claim an address.
func (s *AuthService) Login(ctx context.Context, firebaseToken string) (*LoginResult, error) {
	if s.authClient == nil {
		return nil, domain.NewUnauthorizedError("firebase login is not configured", nil)
	}
	if strings.TrimSpace(firebaseToken) == "" {
		return nil, domain.NewUnauthorizedError("missing firebase token", nil)
	}

	token, err := s.authClient.VerifyIDToken(ctx, firebaseToken)
	if err != nil {
		return nil, domain.NewUnauthorizedError("invalid firebase token", err)
	}

	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)
	phone, _ := token.Claims["phone_number"].(string)
	if email == "" {
		return nil, domain.NewValidationError("firebase account has no email address")
	}
	if name == "" {
		name = email
	}

	isNew := false
	client, err := s.clients.GetByFirebaseUID(ctx, token.UID)
	if errors.Is(err, domain.ErrNotFound) {
		if verified, _ := token.Claims["email_verified"].(bool); !verified {
			return nil, domain.NewForbiddenError("email address is not verified")
		}
		client, err = s.clients.GetByEmail(ctx, email)
		switch {
		case err == nil && client.FirebaseUID != "" && client.FirebaseUID != token.UID:
			return nil, domain.NewForbiddenError("email already linked to a different account")
		case err == nil:
			// pre-provisioned account, link it on first login
			client.FirebaseUID = token.UID
			client.UpdatedAt = s.now().UTC()
			if err := s.clients.Update(ctx, client); err != nil {
				return nil, domain.NewPersistenceError("link firebase account", err)
			}
		case errors.Is(err, domain.ErrNotFound):
			client = &domain.Client{
				FirebaseUID: token.UID,
				Name:        name,
				Email:       email,
				Phone:       phone,
				Role:        domain.RoleClient,
			}
			if err := s.clients.Create(ctx, client); err != nil {
				return nil, domain.NewPersistenceError("create client", err)
			}
			isNew = true
		default:
			return nil, domain.NewPersistenceError("load client", err)
		}
	} else if err != nil {
		return nil, domain.NewPersistenceError("load client", err)
	}

	signed, expiresAt, err := s.GenerateToken(client)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Client:      client,
		Token:       signed,
		ExpiresAt:   expiresAt,
		IsNewClient: isNew,
	}, nil
}

// GenerateToken creates a JWT token with custom claims
func (s *AuthService) GenerateToken(client *domain.Client) (string, time.Time, error) {
	now := s.now()
	expiry := s.jwtConfig.AccessTokenExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	expiresAt := now.Add(expiry)

	role := client.Role
	if role == "" {
		role = domain.RoleClient
	}

	claims := domain.FreightDeskClaims{
		ClientID: client.ID,
		Name:     client.DisplayName(),
		Email:    client.Email,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   client.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}
