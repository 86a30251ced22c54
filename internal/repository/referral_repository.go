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
)

const referralColumns = `id, code, is_used, used_by_account_id, used_at, created_at`

// ReferralRepository persists single-use referral codes.
type ReferralRepository struct {
	db *sqlx.DB
}

// NewReferralRepository constructs a ReferralRepository.
func NewReferralRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Redeem attaches an unused code to the account's student and grants access.
// Returns ErrCodeUnavailable when the code is unknown or used, and ErrAlreadyGranted
// when the student can already apply, in which case the code is left unused.
func (r *ReferralRepository) Redeem(ctx context.Context, accountID, code string, now time.Time) (_ *models.ReferralCode, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin redeem referral: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	student, err := lockStudentTx(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if err = lockAvailableCodeTx(ctx, tx, code); err != nil {
		return nil, err
	}
	if student.CanApply {
		err = ErrAlreadyGranted
		return nil, err
	}

	referral, err := consumeReferralCodeTx(ctx, tx, code, accountID, now)
	if err != nil {
		return nil, err
	}

	const grant = `UPDATE students SET referral_code_id = $2, can_apply = TRUE, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, grant, student.ID, referral.ID, now); err != nil {
		return nil, fmt.Errorf("attach referral code: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redeem referral: %w", err)
	}
	return referral, nil
}

// InsertCodes stores the given codes, silently skipping any that already exist,
// and returns the codes that were actually inserted.
func (r *ReferralRepository) InsertCodes(ctx context.Context, codes []string) ([]string, error) {
	const query = `INSERT INTO referral_codes (id, code, is_used, created_at) VALUES ($1, $2, FALSE, $3) ON CONFLICT (code) DO NOTHING RETURNING code`
	now := time.Now().UTC()
	inserted := make([]string, 0, len(codes))
	for _, code := range codes {
		var stored string
		err := r.db.GetContext(ctx, &stored, query, uuid.NewString(), code, now)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return inserted, fmt.Errorf("insert referral code: %w", err)
		}
		inserted = append(inserted, stored)
	}
	return inserted, nil
}

// List returns codes matching the filter with total count.
func (r *ReferralRepository) List(ctx context.Context, filter models.ReferralCodeFilter) ([]models.ReferralCode, int, error) {
	baseQuery := `FROM referral_codes WHERE 1=1`
	var args []interface{}
	if filter.Used != nil {
		args = append(args, *filter.Used)
		baseQuery += fmt.Sprintf(" AND is_used = $%d", len(args))
	}

	page, size := models.Normalize(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC, code LIMIT %d OFFSET %d", referralColumns, baseQuery, size, (page-1)*size)

	var codes []models.ReferralCode
	if err := r.db.SelectContext(ctx, &codes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list referral codes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count referral codes: %w", err)
	}
	return codes, total, nil
}

// Counts returns the number of used and available codes.
func (r *ReferralRepository) Counts(ctx context.Context) (used, available int, err error) {
	const query = `SELECT COUNT(*) FILTER (WHERE is_used) AS used, COUNT(*) FILTER (WHERE NOT is_used) AS available FROM referral_codes`
	var row struct {
		Used      int `db:"used"`
		Available int `db:"available"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("count referral codes: %w", err)
	}
	return row.Used, row.Available, nil
}

func lockAvailableCodeTx(ctx context.Context, tx *sqlx.Tx, code string) error {
	const query = `SELECT id FROM referral_codes WHERE code = $1 AND is_used = FALSE FOR UPDATE`
	var id string
	if err := tx.GetContext(ctx, &id, query, normalizeCode(code)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCodeUnavailable
		}
		return fmt.Errorf("lock referral code: %w", err)
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// consumeReferralCodeTx flips an unused code to used in a single conditional update,
// so two concurrent redemptions of the same code cannot both succeed.
func consumeReferralCodeTx(ctx context.Context, tx *sqlx.Tx, code, accountID string, now time.Time) (*models.ReferralCode, error) {
	query := `UPDATE referral_codes SET is_used = TRUE, used_by_account_id = $2, used_at = $3 WHERE code = $1 AND is_used = FALSE RETURNING ` + referralColumns
	var referral models.ReferralCode
	if err := tx.GetContext(ctx, &referral, query, normalizeCode(code), accountID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeUnavailable
		}
		return nil, fmt.Errorf("consume referral code: %w", err)
	}
	return &referral, nil
}
