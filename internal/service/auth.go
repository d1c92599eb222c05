// Package service holds the application logic between the HTTP handlers and
// the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storyweaver-server/internal/config"
	"storyweaver-server/internal/models"
	"storyweaver-server/internal/repository"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenIssuer      = "storyweaver-server"
)

// AuthService registers users, authenticates them and manages JWT token
// pairs.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.TokenDetails, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error)
	Logout(ctx context.Context, accessUUID, refreshUUID string) error
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	VerifyAccessToken(tokenString string) (*models.Claims, error)
	VerifyRefreshToken(tokenString string) (*models.Claims, error)
}

// Compile-time check to ensure authService implements AuthService.
var _ AuthService = (*authService)(nil)

type authService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	cfg       *config.Config
	logger    *zap.Logger
}

// NewAuthService creates the auth service.
func NewAuthService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository, cfg *config.Config, logger *zap.Logger) AuthService {
	return &authService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		cfg:       cfg,
		logger:    logger.Named("AuthService"),
	}
}

// Register creates a new user account.
func (s *authService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	logFields := []zap.Field{zap.String("username", username), zap.String("email", email)}
	s.logger.Info("Registering new user", logFields...)

	if username == "" || password == "" {
		s.logger.Warn("Registration attempt with empty username or password", logFields...)
		return nil, models.ErrInvalidCredentials
	}
	if _, err := mail.ParseAddress(email); err != nil {
		s.logger.Warn("Registration attempt with invalid email format", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("invalid email format: %w", models.ErrInvalidCredentials)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Uniqueness violations are already mapped by the repository.
		if !errors.Is(err, models.ErrUserAlreadyExists) && !errors.Is(err, models.ErrEmailAlreadyExists) {
			s.logger.Error("Failed to create user via repository", append(logFields, zap.Error(err))...)
		}
		return nil, err
	}

	s.logger.Info("User registered successfully", zap.Stringer("userID", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Login authenticates a user and returns a fresh token pair.
func (s *authService) Login(ctx context.Context, username, password string) (*models.TokenDetails, error) {
	s.logger.Info("Login attempt", zap.String("username", username))

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.logger.Warn("Login failed: user not found", zap.String("username", username))
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("Login failed: error getting user from repository", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.logger.Warn("Login failed: invalid password", zap.String("username", username), zap.Stringer("userID", user.ID))
		return nil, models.ErrInvalidCredentials
	}

	td, err := s.createTokens(user.ID)
	if err != nil {
		s.logger.Error("Failed to create tokens during login", zap.Error(err), zap.Stringer("userID", user.ID))
		return nil, fmt.Errorf("failed to create tokens: %w", err)
	}

	if err := s.tokenRepo.SetToken(ctx, user.ID, td); err != nil {
		s.logger.Error("Failed to save token details during login", zap.Error(err), zap.Stringer("userID", user.ID))
		return nil, fmt.Errorf("failed to save token details: %w", err)
	}

	s.logger.Info("User logged in successfully", zap.Stringer("userID", user.ID))
	return td, nil
}

// Refresh rotates a valid refresh token into a new token pair. The old
// refresh token is revoked.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
	s.logger.Info("Token refresh attempt")

	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh {
		s.logger.Warn("Refresh attempt with a non-refresh token", zap.String("tokenType", claims.TokenType))
		return nil, models.ErrTokenInvalid
	}

	storedUserID, err := s.tokenRepo.GetUserIDByRefresh(ctx, claims.TokenUUID)
	if err != nil {
		if errors.Is(err, models.ErrTokenNotFound) {
			s.logger.Warn("Refresh attempt with revoked or unknown token", zap.String("refreshUUID", claims.TokenUUID))
			return nil, models.ErrTokenNotFound
		}
		s.logger.Error("Error checking refresh token in store", zap.Error(err))
		return nil, fmt.Errorf("error checking refresh token: %w", err)
	}
	if storedUserID != claims.UserID {
		s.logger.Error("Refresh token user ID mismatch",
			zap.Stringer("tokenUserID", claims.UserID),
			zap.Stringer("storedUserID", storedUserID))
		return nil, models.ErrTokenInvalid
	}

	newTd, err := s.createTokens(claims.UserID)
	if err != nil {
		s.logger.Error("Failed to create new tokens during refresh", zap.Error(err))
		return nil, fmt.Errorf("failed to create new tokens: %w", err)
	}

	if _, delErr := s.tokenRepo.DeleteTokens(ctx, "", claims.TokenUUID); delErr != nil {
		// Non-critical, the old token will expire on its own TTL.
		s.logger.Error("Failed to delete old refresh token during refresh", zap.Error(delErr))
	}

	if err := s.tokenRepo.SetToken(ctx, claims.UserID, newTd); err != nil {
		s.logger.Error("Failed to save new token details during refresh", zap.Error(err))
		return nil, fmt.Errorf("failed to save new token details: %w", err)
	}

	s.logger.Info("Token refreshed successfully", zap.Stringer("userID", claims.UserID))
	return newTd, nil
}

// Logout revokes a token pair. Succeeds even when the tokens are already
// gone.
func (s *authService) Logout(ctx context.Context, accessUUID, refreshUUID string) error {
	log := s.logger.With(zap.String("accessUUID", accessUUID))

	deleted, err := s.tokenRepo.DeleteTokens(ctx, accessUUID, refreshUUID)
	if err != nil {
		log.Error("Failed to delete tokens during logout", zap.Error(err))
	}
	if deleted > 0 {
		log.Info("Tokens revoked during logout", zap.Int64("deletedCount", deleted))
	} else {
		log.Info("No tokens found to revoke during logout")
	}
	return nil
}

// GetUser returns the account behind a user ID.
func (s *authService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// VerifyAccessToken parses and validates an access token string.
func (s *authService) VerifyAccessToken(tokenString string) (*models.Claims, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		s.logger.Warn("Access verification attempt with a non-access token", zap.String("tokenType", claims.TokenType))
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

// VerifyRefreshToken parses and validates a refresh token string.
func (s *authService) VerifyRefreshToken(tokenString string) (*models.Claims, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh {
		s.logger.Warn("Refresh verification attempt with a non-refresh token", zap.String("tokenType", claims.TokenType))
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

func (s *authService) parseToken(tokenString string) (*models.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			s.logger.Debug("Token verification failed: expired")
			return nil, models.ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			s.logger.Warn("Token verification failed: malformed")
			return nil, models.ErrTokenMalformed
		}
		s.logger.Error("Failed to parse token", zap.Error(err))
		return nil, models.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok || !token.Valid {
		s.logger.Warn("Token verification failed (invalid claims type or signature)")
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

// createTokens builds a signed access/refresh token pair.
func (s *authService) createTokens(userID uuid.UUID) (*models.TokenDetails, error) {
	now := time.Now()
	td := &models.TokenDetails{
		AccessUUID:  uuid.NewString(),
		RefreshUUID: uuid.NewString(),
		AtExpires:   now.Add(s.cfg.AccessTokenTTL).Unix(),
		RtExpires:   now.Add(s.cfg.RefreshTokenTTL).Unix(),
	}

	var err error
	td.AccessToken, err = s.signToken(userID, td.AccessUUID, tokenTypeAccess, now, time.Unix(td.AtExpires, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	td.RefreshToken, err = s.signToken(userID, td.RefreshUUID, tokenTypeRefresh, now, time.Unix(td.RtExpires, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return td, nil
}

func (s *authService) signToken(userID uuid.UUID, tokenUUID, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	claims := &models.Claims{
		UserID:    userID,
		TokenUUID: tokenUUID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenUUID,
			Subject:   userID.String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
