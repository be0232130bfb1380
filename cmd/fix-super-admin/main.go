package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/database"
	"github.com/stemsi/libris-backend/internal/logger"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/repository"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	accounts := repository.NewAccountRepository(pool)

	fmt.Println("=== Restore Super Admin ===")
	fmt.Println("Promotes the oldest admin when no super admin account exists.")

	admins, err := accounts.ListAdminTier(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list admin-tier accounts")
	}
	if len(admins) > 0 && admins[0].Role.IsSuperAdminTier() {
		fmt.Printf("Nothing to do: %s (ID %d) is already the super admin.\n", admins[0].Email, admins[0].ID)
		return
	}

	oldest, err := accounts.OldestAdmin(ctx)
	if errors.Is(err, repository.ErrAccountNotFound) {
		fmt.Println("Error: No admin accounts exist. Use create-admin instead.")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to find oldest admin")
	}

	promoted, err := accounts.UpdateRole(ctx, oldest.ID, model.RoleSuperAdmin)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to promote admin")
	}

	fmt.Printf("\nSuccess! %s (ID %d) is now the super admin.\n", promoted.Email, promoted.ID)
}
