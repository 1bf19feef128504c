package main

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/dolos-sec/dolos/internal/config"
	"github.com/dolos-sec/dolos/internal/database"
	"github.com/dolos-sec/dolos/internal/models"
)

// Seeds the admin account and an example notification provider so a fresh
// install is usable immediately.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.BlockRecord{},
		&models.AuditEntry{},
		&models.NotificationProvider{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
	fmt.Println("✓ Database migrated successfully")

	email := envOr("DOLOS_ADMIN_EMAIL", "admin@example.com")
	password := envOr("DOLOS_ADMIN_PASSWORD", "changeme123")

	var count int64
	db.Model(&models.User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		fmt.Printf("✓ Admin user %s already exists, skipping\n", email)
	} else {
		admin := models.User{
			UUID:    uuid.NewString(),
			Email:   email,
			Name:    "Administrator",
			Role:    "admin",
			Enabled: true,
		}
		if err := admin.SetPassword(password); err != nil {
			log.Fatal("Failed to hash admin password:", err)
		}
		if err := db.Create(&admin).Error; err != nil {
			log.Fatal("Failed to create admin user:", err)
		}
		fmt.Printf("✓ Created admin user %s\n", email)
	}

	if url := os.Getenv("DOLOS_NOTIFY_URL"); url != "" {
		provider := models.NotificationProvider{
			UUID:         uuid.NewString(),
			Name:         "default",
			Type:         "shoutrrr",
			URL:          url,
			Enabled:      true,
			NotifyBlocks: true,
		}
		if err := db.Create(&provider).Error; err != nil {
			log.Fatal("Failed to create notification provider:", err)
		}
		fmt.Println("✓ Created default notification provider")
	}

	fmt.Println("✓ Seed complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
