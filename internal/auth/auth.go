// Package auth is the authentication edge: signup, login and token
// verification. Everything past the JWT middleware works with a model.Actor.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/openlancer/openlancer/internal/apperr"
	"github.com/openlancer/openlancer/internal/model"
	"github.com/openlancer/openlancer/internal/storage"
)

type Service struct {
	store     storage.Store
	jwtSecret []byte
	tokenTTL  time.Duration
}

func New(store storage.Store, jwtSecret string) *Service {
	return &Service{store: store, jwtSecret: []byte(jwtSecret), tokenTTL: 72 * time.Hour}
}

// Signup registers a user and creates the profile record the core writes
// its aggregates to. Role must be buyer or freelancer; admins are promoted
// out of band.
func (s *Service) Signup(ctx context.Context, name, email, password string, role model.Role) (string, error) {
	if role != model.RoleBuyer && role != model.RoleFreelancer {
		return "", apperr.Validation("role must be buyer or freelancer")
	}
	if len(password) < 6 {
		return "", apperr.Validation("password must be at least 6 characters")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Internal(err, "failed to hash password")
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hashed),
		Role:         role,
		CreatedAt:    time.Now(),
	}
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperr.InvalidState("email already registered")
			}
			return apperr.Wrap(err, "failed to create user")
		}
		profile := &model.Profile{
			UserID:        user.ID,
			DisplayName:   name,
			Rating:        decimal.Zero,
			TotalEarnings: decimal.Zero,
		}
		if err := tx.Profiles().Create(ctx, profile); err != nil {
			return apperr.Wrap(err, "failed to create profile")
		}
		return nil
	})
	if err != nil {
		return "", apperr.Wrap(err, "signup failed")
	}

	return s.issueToken(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return "", apperr.Forbidden("invalid credentials")
	}
	if err != nil {
		return "", apperr.Wrap(err, "failed to fetch user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", apperr.Forbidden("invalid credentials")
	}
	return s.issueToken(user)
}

func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.store.Users().Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "failed to fetch user")
	}
	return user, nil
}

func (s *Service) issueToken(user *model.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperr.Internal(err, "token generation failed")
	}
	return signed, nil
}

// VerifyToken parses a bearer token back into an Actor.
func (s *Service) VerifyToken(tokenStr string) (model.Actor, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return model.Actor{}, apperr.Forbidden("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.Actor{}, apperr.Forbidden("invalid token claims")
	}
	id, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	if id == "" || role == "" {
		return model.Actor{}, apperr.Forbidden("invalid token claims")
	}
	return model.Actor{ID: id, Role: model.Role(role)}, nil
}
