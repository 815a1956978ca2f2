package service

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/truecar-kr/truecar-backend/internal/app/repository"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
)

const defaultAdminLookupTimeout = 3 * time.Second

// AdminGate answers "is this email an administrator".
// Lookup failures always resolve to "not admin".
type AdminGate interface {
	IsAdmin(ctx context.Context, email string) bool
	RequireAdmin(ctx context.Context, email string) error
	Grant(ctx context.Context, email string) error
}

type adminGate struct {
	adminRepo repository.AdminUserRepository
	timeout   time.Duration
}

func NewAdminGate(adminRepo repository.AdminUserRepository) AdminGate {
	return &adminGate{
		adminRepo: adminRepo,
		timeout:   defaultAdminLookupTimeout,
	}
}

func (g *adminGate) IsAdmin(ctx context.Context, email string) bool {
	if email == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ok, err := g.adminRepo.ExistsByEmail(ctx, email)
	if err != nil {
		logger.Error("Admin lookup failed, denying", err, map[string]interface{}{
			"email": email,
		})
		return false
	}
	return ok
}

func (g *adminGate) RequireAdmin(ctx context.Context, email string) error {
	if !g.IsAdmin(ctx, email) {
		logger.Warn("Admin-only operation rejected", map[string]interface{}{
			"email": email,
		})
		return ErrPermissionDenied
	}
	return nil
}

// Grant records email as an administrator. Granting twice is a no-op.
func (g *adminGate) Grant(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return newFieldError("email", err.Error())
	}

	if err := g.adminRepo.Create(ctx, &model.AdminUser{Email: email}); err != nil {
		logger.Error("Failed to grant admin", err, map[string]interface{}{
			"email": email,
		})
		return storageError("grant admin", err)
	}

	logger.Info("Admin granted", map[string]interface{}{
		"email": email,
	})
	return nil
}
