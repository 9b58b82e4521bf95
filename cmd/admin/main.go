// Package main provides admin management utilities for Nexify.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"nexify/internal/config"
	"nexify/internal/database"
	"nexify/internal/models"
	"nexify/internal/repository"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  admin promote <email>        - Grant staff access")
	fmt.Println("  admin superuser <email>      - Grant staff and superuser access")
	fmt.Println("  admin demote <email>         - Revoke staff and superuser access")
	fmt.Println("  admin list-admins            - List staff accounts")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)

	switch command := os.Args[1]; command {
	case "promote", "superuser", "demote":
		if len(os.Args) < 3 {
			usage()
		}
		staff := command != "demote"
		superuser := command == "superuser"
		setStaff(ctx, users, os.Args[2], staff, superuser)
	case "list-admins":
		listAdmins(ctx, db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func setStaff(ctx context.Context, users repository.UserRepository, email string, staff, superuser bool) {
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	if user == nil {
		fmt.Printf("User %s not found\n", email)
		os.Exit(1)
	}

	if user.IsStaff == staff && user.IsSuperuser == superuser {
		fmt.Printf("User %s already has the requested access\n", user.Email)
		return
	}

	if err := users.SetStaff(ctx, user.ID, staff, superuser); err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}
	fmt.Printf("Updated %s (ID: %s): staff=%t superuser=%t\n", user.Email, user.ID, staff, superuser)
}

func listAdmins(ctx context.Context, db *gorm.DB) {
	var admins []models.User
	if err := db.WithContext(ctx).
		Where("is_staff = ? OR is_superuser = ?", true, true).
		Order("email").
		Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("Current Admins:")
	for _, admin := range admins {
		fmt.Printf("ID: %s | Email: %s | superuser=%t\n", admin.ID, admin.Email, admin.IsSuperuser)
	}
}
