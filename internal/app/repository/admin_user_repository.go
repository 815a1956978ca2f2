package repository

import (
	"context"

	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
	"gorm.io/gorm"
)

type AdminUserRepository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*model.AdminUser, error)
	// Create records the grant; an existing grant for the email is left as is.
	Create(ctx context.Context, admin *model.AdminUser) error
}

type adminUserRepository struct {
	db *gorm.DB
}

func NewAdminUserRepository(db *gorm.DB) AdminUserRepository {
	return &adminUserRepository{db: db}
}

// ExistsByEmail matches the email exactly, with no case folding.
func (r *adminUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AdminUser{}).
		Where("email = ?", email).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *adminUserRepository) FindByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	var admin model.AdminUser
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *adminUserRepository) Create(ctx context.Context, admin *model.AdminUser) error {
	err := r.db.WithContext(ctx).
		Where(model.AdminUser{Email: admin.Email}).
		FirstOrCreate(admin).Error
	if err != nil {
		logger.Error("Failed to create admin user", err, map[string]interface{}{
			"email": admin.Email,
		})
		return err
	}

	logger.Info("Admin grant recorded", map[string]interface{}{
		"admin_id": admin.ID,
		"email":    admin.Email,
	})
	return nil
}
