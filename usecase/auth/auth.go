package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/pkg/jwtauth"
	"github.com/fastygo/stakes/pkg/logger"
	"github.com/fastygo/stakes/repository"
)

const minPasswordLength = 8

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// Session is returned on register and login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

type UseCase struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	bcryptCost int
	logger     *zap.Logger
}

func New(users repository.UserRepository, tokens TokenIssuer, bcryptCost int, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UseCase{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (uc *UseCase) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, domain.ValidationError("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ValidationError("email is invalid")
	}
	if len(password) < minPasswordLength {
		return nil, domain.ValidationError("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), uc.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.FromContext(ctx, uc.logger).Info("user registered", zap.String("user_id", user.ID))
	return uc.session(user)
}

func (uc *UseCase) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := uc.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.FromContext(ctx, uc.logger).Warn("login rejected", zap.String("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}
	return uc.session(user)
}

func (uc *UseCase) session(user *domain.User) (*Session, error) {
	token, expires, err := uc.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

var _ TokenIssuer = (*jwtauth.Issuer)(nil)
