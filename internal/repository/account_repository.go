package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/libris-backend/internal/model"
)

var (
	ErrDuplicateEmail   = errors.New("account with this email already exists")
	ErrAccountNotFound  = errors.New("account not found")
	ErrSuperAdminExists = errors.New("a super admin account already exists")
)

// registrationLockKey serializes role assignment across concurrent sign-ups.
const registrationLockKey int64 = 0x6c6962726973 // "libris"

const accountColumns = `id, email, password_hash, role, created_at, updated_at`

// AccountRepository handles account data access.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	a := &model.Account{}
	var role string
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	a.Role = model.ParseRoleTier(role)
	return a, nil
}

// translateWriteErr maps unique violations to domain errors.
func translateWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "accounts_single_super_admin" {
			return ErrSuperAdminExists
		}
		return ErrDuplicateEmail
	}
	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// GetByEmail retrieves an account by its unique email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`, email))
}

// CountAll returns the number of accounts.
func (r *AccountRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

// CountAdminTier returns the number of super_admin and admin accounts.
func (r *AccountRepository) CountAdminTier(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM accounts WHERE role IN ('super_admin', 'admin')`).Scan(&n)
	return n, err
}

// HasAdminTier reports whether any admin-tier account exists.
func (r *AccountRepository) HasAdminTier(ctx context.Context) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE role IN ('super_admin', 'admin'))`).Scan(&exists)
	return exists, err
}

// CreateWithPolicy inserts an account whose role is decided under a
// transaction-scoped advisory lock. The stored role is the less privileged of
// requested and what policy allows for the admin-tier count seen inside the
// lock, so concurrent sign-ups cannot both claim the top tier.
func (r *AccountRepository) CreateWithPolicy(ctx context.Context, a *model.Account, policy model.RolePolicy) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, registrationLockKey); err != nil {
		return fmt.Errorf("acquire registration lock: %w", err)
	}

	var adminCount int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM accounts WHERE role IN ('super_admin', 'admin')`).Scan(&adminCount); err != nil {
		return fmt.Errorf("count admin tier: %w", err)
	}

	a.Role = policy.Grant(a.Role, adminCount)

	err = tx.QueryRow(ctx,
		`INSERT INTO accounts (email, password_hash, role)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		a.Email, a.PasswordHash, string(a.Role),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return translateWriteErr(err)
	}

	return tx.Commit(ctx)
}

// Create inserts an account with the role already set on a.
func (r *AccountRepository) Create(ctx context.Context, a *model.Account) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (email, password_hash, role)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		a.Email, a.PasswordHash, string(a.Role),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return translateWriteErr(err)
}

// ListAdminTier retrieves all admin-tier accounts, top tier first.
func (r *AccountRepository) ListAdminTier(ctx context.Context) ([]model.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts
		 WHERE role IN ('super_admin', 'admin')
		 ORDER BY CASE role WHEN 'super_admin' THEN 0 ELSE 1 END, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// OldestAdmin returns the earliest registered admin-tier account.
func (r *AccountRepository) OldestAdmin(ctx context.Context) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE role = 'admin' ORDER BY created_at, id LIMIT 1`))
}

// UpdateRole changes an account's role.
func (r *AccountRepository) UpdateRole(ctx context.Context, id int, role model.RoleTier) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`UPDATE accounts SET role = $1, updated_at = NOW() WHERE id = $2
		 RETURNING `+accountColumns, string(role), id))
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return a, nil
}

// UpdateEmail changes an account's email.
func (r *AccountRepository) UpdateEmail(ctx context.Context, id int, email string) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`UPDATE accounts SET email = $1, updated_at = NOW() WHERE id = $2
		 RETURNING `+accountColumns, email, id))
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return a, nil
}

// UpdatePassword replaces an account's credential hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		passwordHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Delete removes an account by ID.
func (r *AccountRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
