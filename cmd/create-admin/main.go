package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/stemsi/libris-backend/internal/auth"
	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/database"
	"github.com/stemsi/libris-backend/internal/logger"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
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

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create Admin Account ===")

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		return
	}
	password := string(bytePassword)
	if len(password) < auth.MinCredentialLength {
		fmt.Printf("Error: Password must be at least %d characters\n", auth.MinCredentialLength)
		return
	}

	fmt.Print("Enter Role [super_admin|admin] (default admin): ")
	roleStr, _ := reader.ReadString('\n')
	role := model.RoleAdmin
	if s := strings.TrimSpace(roleStr); s != "" {
		role = model.ParseRoleTier(s)
		if !role.IsAdminTier() {
			fmt.Println("Error: Role must be super_admin or admin")
			return
		}
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	account := &model.Account{Email: email, PasswordHash: string(hash), Role: role}
	if err := accounts.Create(ctx, account); err != nil {
		log.Fatal().Err(err).Msg("Failed to create account")
	}

	fmt.Printf("\nSuccess! %s account %s created with ID: %d\n", account.Role, account.Email, account.ID)
}
