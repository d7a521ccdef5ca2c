package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/storefront/order-intake/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_orders",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.OrderModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at DESC)`,
					`CREATE INDEX IF NOT EXISTS idx_orders_email_retry ON orders (next_retry_at) WHERE email_sent = false`,
					`CREATE INDEX IF NOT EXISTS idx_orders_email_failed ON orders (created_at) WHERE email_sent = false AND email_error IS NOT NULL`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.OrderModel{})
			},
		},
	})

	return m.Migrate()
}
