package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"accesspanel/internal/domain/account"
)

// ChangePasswordInput carries input for the change-password orchestrator.
// AccountID comes from the session, never from the request body.
type ChangePasswordInput struct {
	AccountID       string `json:"-" validate:"required"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=12,nefield=CurrentPassword"`
}

// AccountStoreForChangePassword defines the store interface needed by ChangePassword.
type AccountStoreForChangePassword interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// ChangePasswordDeps holds dependencies for ChangePassword.
type ChangePasswordDeps struct {
	AccountStore AccountStoreForChangePassword
}

var ErrCurrentPasswordWrong = errors.New("current password is incorrect")

// ExecuteChangePassword validates the current password and updates to the new one.
// PRE: AccountID names the signed-in operator
// POST: PasswordHash is replaced; lockout counters are untouched
func ExecuteChangePassword(ctx context.Context, input ChangePasswordInput, deps ChangePasswordDeps) error {
	if err := validateInput(input); err != nil {
		return err
	}

	acct, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return err
	}

	if err := acct.CheckPassword(input.CurrentPassword); err != nil {
		slog.Info("auth_event", "event", "password_change_rejected", "account_id", acct.ID)
		return ErrCurrentPasswordWrong
	}

	if err := acct.SetPassword(input.NewPassword); err != nil {
		return err
	}
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return err
	}

	slog.Info("auth_event", "event", "password_changed", "account_id", acct.ID)
	return nil
}
