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
	"github.com/shopspring/decimal"

	"github.com/noah-isme/admission-api/internal/models"
)

const paymentColumns = `p.id, p.student_id, p.reference, p.gateway_reference, p.amount, p.amount_minor, p.status, p.created_at, p.updated_at`

// PaymentRepository persists fee payments and applies the access grant that follows a confirmed charge.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Initiate returns the student's pending payment or creates one with reference.
// The student row is locked so concurrent calls cannot both insert a pending payment.
func (r *PaymentRepository) Initiate(ctx context.Context, accountID, reference string, amount decimal.Decimal, amountMinor int64) (_ *models.Payment, reused bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin initiate payment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	student, err := lockStudentTx(ctx, tx, accountID)
	if err != nil {
		return nil, false, err
	}
	if student.HasPaid || student.CanApply {
		err = ErrAlreadyGranted
		return nil, false, err
	}

	var existing models.Payment
	pendingQuery := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.student_id = $1 AND p.status = $2 ORDER BY p.created_at DESC LIMIT 1`
	err = tx.GetContext(ctx, &existing, pendingQuery, student.ID, models.PaymentPending)
	switch {
	case err == nil:
		if err = tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit initiate payment: %w", err)
		}
		return &existing, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("find pending payment: %w", err)
	}

	now := time.Now().UTC()
	payment := &models.Payment{
		ID:          uuid.NewString(),
		StudentID:   student.ID,
		Reference:   reference,
		Amount:      amount,
		AmountMinor: amountMinor,
		Status:      models.PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	const insert = `INSERT INTO payments (id, student_id, reference, amount, amount_minor, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = tx.ExecContext(ctx, insert, payment.ID, payment.StudentID, payment.Reference, payment.Amount, payment.AmountMinor, payment.Status, payment.CreatedAt, payment.UpdatedAt); err != nil {
		return nil, false, fmt.Errorf("create payment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit initiate payment: %w", err)
	}
	return payment, false, nil
}

// FindByReference loads a payment with its owning account.
func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*models.PaymentWithOwner, error) {
	return r.findOne(ctx, "p.reference = $1", reference)
}

// FindByID loads a payment with its owning account.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.PaymentWithOwner, error) {
	return r.findOne(ctx, "p.id = $1", id)
}

func (r *PaymentRepository) findOne(ctx context.Context, predicate string, arg interface{}) (*models.PaymentWithOwner, error) {
	query := `SELECT ` + paymentColumns + `, s.account_id, a.username, a.email
FROM payments p
JOIN students s ON s.id = p.student_id
JOIN accounts a ON a.id = s.account_id
WHERE ` + predicate
	var payment models.PaymentWithOwner
	if err := r.db.GetContext(ctx, &payment, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

// MarkSuccess sets the payment to success and grants the student access in one transaction.
// It reports false when the payment was already successful, leaving everything untouched.
func (r *PaymentRepository) MarkSuccess(ctx context.Context, paymentID string, gatewayReference *string, now time.Time) (granted bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin payment grant: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const update = `UPDATE payments SET status = $2, gateway_reference = COALESCE($3, gateway_reference), updated_at = $4 WHERE id = $1 AND status <> $2 RETURNING student_id`
	var studentID string
	err = tx.GetContext(ctx, &studentID, update, paymentID, models.PaymentSuccess, gatewayReference, now)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		if cerr := tx.Rollback(); cerr != nil {
			return false, fmt.Errorf("rollback payment grant: %w", cerr)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark payment success: %w", err)
	}

	const grant = `UPDATE students SET has_paid = TRUE, can_apply = TRUE, updated_at = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, grant, studentID, now); err != nil {
		return false, fmt.Errorf("grant student access: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit payment grant: %w", err)
	}
	return true, nil
}

// MarkFailed moves a payment that is not yet successful to failed.
// It reports false when the payment was already successful or already failed.
func (r *PaymentRepository) MarkFailed(ctx context.Context, paymentID string, now time.Time) (bool, error) {
	const query = `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1 AND status NOT IN ($2, $4)`
	res, err := r.db.ExecContext(ctx, query, paymentID, models.PaymentFailed, now, models.PaymentSuccess)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns payments matching the filter with total count.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentWithOwner, int, error) {
	baseQuery := `FROM payments p JOIN students s ON s.id = p.student_id JOIN accounts a ON a.id = s.account_id WHERE 1=1`
	var args []interface{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		baseQuery += fmt.Sprintf(" AND p.status = $%d", len(args))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		baseQuery += fmt.Sprintf(" AND (LOWER(p.reference) LIKE $%d OR LOWER(a.username) LIKE $%d OR LOWER(a.email) LIKE $%d)", len(args), len(args), len(args))
	}

	page, size := models.Normalize(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s, s.account_id, a.username, a.email %s ORDER BY p.created_at DESC LIMIT %d OFFSET %d", paymentColumns, baseQuery, size, (page-1)*size)

	var payments []models.PaymentWithOwner
	if err := r.db.SelectContext(ctx, &payments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// CountByStatus groups payments by status.
func (r *PaymentRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS total FROM payments GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count payments by status: %w", err)
	}
	return counts, nil
}
