package db

import (
	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
	"gorm.io/gorm"
)

// Models is the full persisted schema.
var Models = []interface{}{
	&model.Review{},
	&model.AdminUser{},
	&model.Account{},
}

// Migrate runs database migrations against the global connection.
func Migrate() error {
	return MigrateDB(DB)
}

func MigrateDB(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	if err := db.AutoMigrate(Models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(Models),
	})
	return nil
}

// SeedAdmins records admin grants for the configured emails. Existing grants
// are left untouched.
func SeedAdmins(db *gorm.DB, emails []string) error {
	for _, email := range emails {
		admin := model.AdminUser{Email: email}
		if err := db.Where(model.AdminUser{Email: email}).FirstOrCreate(&admin).Error; err != nil {
			logger.Error("Failed to seed admin user", err, map[string]interface{}{
				"email": email,
			})
			return err
		}
	}
	if len(emails) > 0 {
		logger.Info("Admin users seeded", map[string]interface{}{
			"count": len(emails),
		})
	}
	return nil
}
