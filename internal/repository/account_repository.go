package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/pkg/database"
)

const accountColumns = `id, username, email, first_name, last_name, password_hash, role, active, last_login, created_at, updated_at`

// AccountRepository provides database access for login identities.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByLogin returns an account by username or email, case-insensitively.
func (r *AccountRepository) FindByLogin(ctx context.Context, login string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(username) = $1 OR LOWER(email) = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, strings.ToLower(strings.TrimSpace(login))); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by login: %w", err)
	}
	return &account, nil
}

// FindByID returns an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return &account, nil
}

// UpdateLastLogin updates the last_login timestamp for an account.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE accounts SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Create inserts a standalone account such as a staff member.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	return insertAccount(ctx, r.db, account)
}

// RegisterStudent creates the account, optionally consumes a referral code and
// creates the student profile, all in one transaction. A bad code aborts everything.
func (r *AccountRepository) RegisterStudent(ctx context.Context, account *models.Account, student *models.Student, referralCode string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertAccount(ctx, tx, account); err != nil {
		return err
	}

	student.AccountID = account.ID
	if referralCode != "" {
		var code *models.ReferralCode
		if code, err = consumeReferralCodeTx(ctx, tx, referralCode, account.ID, account.CreatedAt); err != nil {
			return err
		}
		student.ReferralCodeID = &code.ID
		student.CanApply = true
	}
	if err = insertStudent(ctx, tx, student); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *AccountRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, account_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :account_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func insertAccount(ctx context.Context, exec sqlx.ExecerContext, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = account.CreatedAt
	if account.Role == "" {
		account.Role = models.RoleStudent
	}

	const query = `INSERT INTO accounts (id, username, email, first_name, last_name, password_hash, role, active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := exec.ExecContext(ctx, query,
		account.ID, account.Username, strings.ToLower(account.Email), account.FirstName, account.LastName,
		account.PasswordHash, account.Role, account.Active, account.CreatedAt, account.UpdatedAt,
	); err != nil {
		if database.IsUniqueViolation(err, "") {
			return fmt.Errorf("create account: %w", ErrDuplicate)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}
