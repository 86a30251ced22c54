package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-api/internal/models"
)

var paymentRowColumns = []string{"id", "student_id", "reference", "gateway_reference", "amount", "amount_minor", "status", "created_at", "updated_at"}

func TestInitiateCreatesPendingPayment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE account_id = $1 FOR UPDATE")).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows(studentRowColumns).AddRow("stu-1", "acc-1", "", false, false, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments p WHERE p.student_id = $1 AND p.status = $2")).
		WithArgs("stu-1", models.PaymentPending).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "ref-new", sqlmock.AnyArg(), int64(500000), models.PaymentPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	payment, reused, err := repo.Initiate(context.Background(), "acc-1", "ref-new", decimal.NewFromInt(5000), 500000)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, "ref-new", payment.Reference)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitiateReusesPendingPayment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(studentRowColumns).AddRow("stu-1", "acc-1", "", false, false, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments p WHERE p.student_id = $1 AND p.status = $2")).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow("pay-1", "stu-1", "ref-old", nil, "5000.00", 500000, "pending", now, now))
	mock.ExpectCommit()

	payment, reused, err := repo.Initiate(context.Background(), "acc-1", "ref-new", decimal.NewFromInt(5000), 500000)
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, "ref-old", payment.Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitiateAlreadyGranted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(studentRowColumns).AddRow("stu-1", "acc-1", "", false, true, "code-1", now, now))
	mock.ExpectRollback()

	_, _, err := repo.Initiate(context.Background(), "acc-1", "ref", decimal.NewFromInt(5000), 500000)
	assert.ErrorIs(t, err, ErrAlreadyGranted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSuccessGrantsAccess(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	now := time.Now()
	gatewayRef := "4099260516"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET status = $2, gateway_reference = COALESCE($3, gateway_reference), updated_at = $4 WHERE id = $1 AND status <> $2 RETURNING student_id")).
		WithArgs("pay-1", models.PaymentSuccess, gatewayRef, now).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("stu-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET has_paid = TRUE, can_apply = TRUE")).
		WithArgs("stu-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	granted, err := repo.MarkSuccess(context.Background(), "pay-1", &gatewayRef, now)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSuccessIsIdempotent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET status = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}))
	mock.ExpectRollback()

	granted, err := repo.MarkSuccess(context.Background(), "pay-1", nil, time.Now())
	require.NoError(t, err)
	assert.False(t, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedNeverRevertsSuccess(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1 AND status NOT IN ($2, $4)")).
		WithArgs("pay-1", models.PaymentFailed, now, models.PaymentSuccess).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkFailed(context.Background(), "pay-1", now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByReference(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	now := time.Now()

	cols := append(append([]string{}, paymentRowColumns...), "account_id", "username", "email")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.reference = $1")).
		WithArgs("ref-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("pay-1", "stu-1", "ref-1", nil, "5000.00", 500000, "pending", now, now, "acc-1", "amina", "amina@example.com"))

	payment, err := repo.FindByReference(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", payment.AccountID)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(5000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
