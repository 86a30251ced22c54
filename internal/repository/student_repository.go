package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admission-api/internal/models"
)

const studentColumns = `id, account_id, phone, has_paid, can_apply, referral_code_id, created_at, updated_at`

// StudentRepository reads applicant profiles. Access flags are only written inside
// the referral and payment transactions.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByAccountID returns the student owned by the account.
func (r *StudentRepository) FindByAccountID(ctx context.Context, accountID string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE account_id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student by account: %w", err)
	}
	return &student, nil
}

// ProfileByAccountID returns the student joined with its account.
func (r *StudentRepository) ProfileByAccountID(ctx context.Context, accountID string) (*models.StudentProfile, error) {
	const query = `SELECT s.id, s.account_id, s.phone, s.has_paid, s.can_apply, s.referral_code_id, s.created_at, s.updated_at,
a.username, a.email, a.first_name, a.last_name
FROM students s JOIN accounts a ON a.id = s.account_id
WHERE s.account_id = $1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student profile: %w", err)
	}
	return &profile, nil
}

func insertStudent(ctx context.Context, exec sqlx.ExecerContext, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = student.CreatedAt

	const query = `INSERT INTO students (id, account_id, phone, has_paid, can_apply, referral_code_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := exec.ExecContext(ctx, query,
		student.ID, student.AccountID, student.Phone, student.HasPaid, student.CanApply,
		student.ReferralCodeID, student.CreatedAt, student.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// lockStudentTx loads the student row FOR UPDATE, serialising access changes per student.
func lockStudentTx(ctx context.Context, tx *sqlx.Tx, accountID string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE account_id = $1 FOR UPDATE`
	var student models.Student
	if err := tx.GetContext(ctx, &student, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock student: %w", err)
	}
	return &student, nil
}
