package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/knockouthq/knockout/go/internal/apperrors"
	"github.com/knockouthq/knockout/go/internal/models"
)

// UsersRepository defines what the app layer needs from storage.
type UsersRepository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error)
}

// CreateUserRequest carries the fields needed to register a user.
type CreateUserRequest struct {
	ID       uuid.UUID
	Username string
	Email    string
}

// App handles user reads for the client and registration for tooling.
type App struct {
	repo UsersRepository
}

func NewApp(repo UsersRepository) *App {
	return &App{repo: repo}
}

// GetUser fetches a user by id, nil when absent.
func (a *App) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return a.repo.GetUser(ctx, id)
}

// GetUserByEmail fetches a user by email, nil when absent.
func (a *App) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return a.repo.GetUserByEmail(ctx, email)
}

// CreateUser registers a user after basic validation.
func (a *App) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, apperrors.Validation("username is required")
	}
	if !strings.Contains(req.Email, "@") {
		return nil, apperrors.Validationf("invalid email %q", req.Email)
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	existing, err := a.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Validationf("email %s already registered", req.Email)
	}

	return a.repo.CreateUser(ctx, req)
}
