package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var studentRowColumns = []string{"id", "account_id", "phone", "has_paid", "can_apply", "referral_code_id", "created_at", "updated_at"}

func TestStudentRepositoryFindByAccountID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE account_id = $1")).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows(studentRowColumns).AddRow("stu-1", "acc-1", "+2348012345678", true, true, nil, now, now))

	student, err := repo.FindByAccountID(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", student.ID)
	assert.True(t, student.AccessConsistent())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByAccountIDMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE account_id = $1")).
		WithArgs("staff-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByAccountID(context.Background(), "staff-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryProfileByAccountID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	columns := append(append([]string{}, studentRowColumns...), "username", "email", "first_name", "last_name")
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s JOIN accounts a ON a.id = s.account_id")).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("stu-1", "acc-1", "+2348012345678", false, true, "ref-1", now, now, "amina", "amina@example.com", "Amina", "Bello"))

	profile, err := repo.ProfileByAccountID(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "amina", profile.Username)
	require.NotNil(t, profile.ReferralCodeID)
	assert.Equal(t, "ref-1", *profile.ReferralCodeID)
	assert.True(t, profile.CanApply)
	assert.NoError(t, mock.ExpectationsWereMet())
}
