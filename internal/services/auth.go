package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/feedpress/apiserver/internal/store"
	"github.com/feedpress/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is the fixed lifetime of an issued token.
const TokenTTL = time.Hour

const (
	DefaultBcryptCost = 12

	msgUserExists    = "User exists already!"
	msgUnknownUser   = "user not found"
	msgWrongPassword = "invalid email or password"
)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

type tokenClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService hashes passwords, verifies credentials and issues tokens
// signed with a process-wide secret.
type AuthService struct {
	users  UserRepository
	secret []byte
	cost   int
	now    func() time.Time
}

func NewAuthService(users UserRepository, jwtSecret string, bcryptCost int) (*AuthService, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if bcryptCost == 0 {
		bcryptCost = DefaultBcryptCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}
	return &AuthService{
		users:  users,
		secret: []byte(jwtSecret),
		cost:   bcryptCost,
		now:    time.Now,
	}, nil
}

// Register validates the credentials, rejects a taken email and stores a
// new user with a bcrypt hash of the password.
//
// A well-formed email that is already on file fails with Conflict even when
// the password also violates policy; the lookup runs before hashing.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (types.User, error) {
	violations := ValidateCredentials(input.Email, input.Password)

	if isEmail(input.Email) {
		_, err := s.users.GetByEmail(ctx, input.Email)
		if err == nil {
			return types.User{}, types.NewConflict(msgUserExists)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return types.User{}, fmt.Errorf("check existing user: %w", err)
		}
	}

	if len(violations) > 0 {
		return types.User{}, types.NewInvalidInput(violations)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hashed),
		Status:       types.DefaultUserStatus,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, types.NewConflict(msgUserExists)
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate verifies the password of the user registered under email
// and issues a token for them.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (types.AuthPayload, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AuthPayload{}, types.NewInvalidCredentials(msgUnknownUser)
		}
		return types.AuthPayload{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.AuthPayload{}, types.NewInvalidCredentials(msgWrongPassword)
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return types.AuthPayload{}, fmt.Errorf("issue token: %w", err)
	}

	return types.AuthPayload{
		Token:  token,
		UserID: strconv.FormatInt(user.ID, 10),
	}, nil
}

// IssueToken signs {userId, email} with an expiry of exactly TokenTTL.
func (s *AuthService) IssueToken(user types.User) (string, error) {
	now := s.now()
	claims := tokenClaims{
		UserID: strconv.FormatInt(user.ID, 10),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken checks signature and expiry. Any failure yields the
// anonymous state; it never returns an error.
func (s *AuthService) ValidateToken(tokenString string) types.AuthState {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return types.Anonymous
	}

	claims := tokenClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return types.Anonymous
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(claims.UserID), 10, 64)
	if err != nil || userID < 1 {
		return types.Anonymous
	}

	return types.AuthState{
		Authenticated: true,
		UserID:        userID,
		Email:         claims.Email,
	}
}
