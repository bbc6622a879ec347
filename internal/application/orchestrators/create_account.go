package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"accesspanel/internal/domain/account"

	"github.com/google/uuid"
)

// AccountStoreForCreate defines the store interface needed by CreateAccount.
type AccountStoreForCreate interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
	Count(ctx context.Context) (int, error)
}

// CreateAccountInput carries input for the orchestrator.
type CreateAccountInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=12"`
	Role     string `json:"role" validate:"required,oneof=admin operator"`
}

// CreateAccountDeps holds dependencies for CreateAccount.
type CreateAccountDeps struct {
	AccountStore AccountStoreForCreate
	Now          func() time.Time
}

var ErrEmailAlreadyExists = errors.New("an account with this email already exists")

// ExecuteCreateAccount coordinates account creation.
// PRE: Valid email, password >= 12 chars, valid role
// POST: Account created with hashed password
// INVARIANT: Email must be unique (case-insensitive)
func ExecuteCreateAccount(ctx context.Context, input CreateAccountInput, deps CreateAccountDeps) (string, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := validateInput(input); err != nil {
		return "", err
	}

	_, err := deps.AccountStore.GetByEmail(ctx, input.Email)
	if err == nil {
		return "", ErrEmailAlreadyExists
	}
	if !errors.Is(err, account.ErrNotFound) {
		return "", err
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	acct := account.Account{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(input.Email),
		Role:      input.Role,
		CreatedAt: now(),
	}

	if err := acct.Validate(); err != nil {
		return "", err
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return "", err
	}
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return "", err
	}

	slog.Info("auth_event", "event", "account_created", "email", acct.Email, "role", acct.Role)
	return acct.ID, nil
}

// ExecuteSeedAdmin creates a default admin account if no accounts exist.
// PRE: Database is initialized
// POST: Admin account created if count == 0
func ExecuteSeedAdmin(ctx context.Context, deps CreateAccountDeps, email, password string) error {
	count, err := deps.AccountStore.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if _, err := ExecuteCreateAccount(ctx, CreateAccountInput{
		Email:    email,
		Password: password,
		Role:     account.RoleAdmin,
	}, deps); err != nil {
		return err
	}

	slog.Info("auth_event", "event", "admin_seeded", "email", email)
	return nil
}
