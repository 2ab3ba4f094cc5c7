package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 8
)

// AuthService handles registration, login, and session tokens. Passwords are
// stored as bcrypt hashes; sessions are stateless HS256 JWTs carrying the
// account ID and the admin flag.
type AuthService struct {
	accounts domain.AccountStore
	logger   *slog.Logger

	secret          []byte
	tokenTTL        time.Duration
	startingBalance int64
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	accounts domain.AccountStore,
	logger *slog.Logger,
	secret string,
	tokenTTL time.Duration,
	startingBalance int64,
) *AuthService {
	return &AuthService{
		accounts:        accounts,
		logger:          logger,
		secret:          []byte(secret),
		tokenTTL:        tokenTTL,
		startingBalance: startingBalance,
	}
}

// sessionClaims is the JWT payload for a session token.
type sessionClaims struct {
	Admin bool `json:"adm"`
	jwt.RegisteredClaims
}

// Register creates a new account with the starting balance and returns it
// together with a fresh session token. A taken username fails with
// domain.ErrAlreadyExists.
func (s *AuthService) Register(ctx context.Context, username, password string) (domain.Account, string, error) {
	if err := validateUsername(username); err != nil {
		return domain.Account{}, "", err
	}
	if len(password) < minPasswordLen {
		return domain.Account{}, "", fmt.Errorf("auth: password must be at least %d characters: %w",
			minPasswordLen, domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Account{}, "", fmt.Errorf("auth: hash password: %w", err)
	}

	account := domain.Account{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Balance:      big.NewInt(s.startingBalance),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return domain.Account{}, "", fmt.Errorf("auth: create account: %w", err)
	}

	token, err := s.issueToken(account)
	if err != nil {
		return domain.Account{}, "", err
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
		slog.String("username", username),
	)
	return account, token, nil
}

// Login verifies the credentials and returns the account with a fresh session
// token. Both an unknown username and a wrong password fail with
// domain.ErrForbidden, so a caller cannot probe which usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.Account, string, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, "", fmt.Errorf("auth: bad credentials: %w", domain.ErrForbidden)
		}
		return domain.Account{}, "", fmt.Errorf("auth: login %s: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return domain.Account{}, "", fmt.Errorf("auth: bad credentials: %w", domain.ErrForbidden)
	}

	token, err := s.issueToken(account)
	if err != nil {
		return domain.Account{}, "", err
	}
	return account, token, nil
}

// ParseToken validates a session token and returns the identity it carries.
// Any parse or signature failure maps to domain.ErrForbidden.
func (s *AuthService) ParseToken(tokenString string) (domain.Identity, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("auth: invalid token: %w", domain.ErrForbidden)
	}

	return domain.Identity{
		AccountID: claims.Subject,
		Admin:     claims.Admin,
	}, nil
}

func (s *AuthService) issueToken(account domain.Account) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		Admin: account.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return fmt.Errorf("auth: username must be %d-%d characters: %w",
			minUsernameLen, maxUsernameLen, domain.ErrInvalidInput)
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return fmt.Errorf("auth: username may only contain letters, digits, '_' and '-': %w",
				domain.ErrInvalidInput)
		}
	}
	return nil
}
