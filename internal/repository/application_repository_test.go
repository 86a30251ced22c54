package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-api/internal/models"
)

var applicationRowColumns = []string{"id", "student_id", "application_number", "passport_photo", "first_name", "surname", "other_name", "date_of_birth", "phone", "email", "address", "lga", "state_of_origin",
	"guardian_name", "guardian_phone", "guardian_address", "guardian_relationship", "first_choice", "second_choice", "declaration_text", "status", "is_submitted", "submitted_at", "created_at", "updated_at"}

func applicationRow(id, studentID, number string, now time.Time) []driver.Value {
	return []driver.Value{id, studentID, number, nil, "Amina", "Bello", "", nil, "+2348012345678", "amina@example.com", "", "", "",
		"", "", "", "", "", "", "", "pending", false, nil, now, now}
}

func TestFormatApplicationNumber(t *testing.T) {
	assert.Equal(t, "CHSTH/2024/0007", FormatApplicationNumber("CHSTH", 2024, 7))
	assert.Equal(t, "CHSTH/2024/12345", FormatApplicationNumber("CHSTH", 2024, 12345))
}

func TestCreateApplicationAssignsNumber(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO application_sequences")).
		WithArgs(2025, "CHSTH/2025/%").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "CHSTH/2025/0007", "Amina", "Bello", "amina@example.com", "+2348012345678", models.ReviewPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("app-1"))
	mock.ExpectCommit()

	app, created, err := repo.Create(context.Background(), &models.Application{
		StudentID: "stu-1", FirstName: "Amina", Surname: "Bello", Email: "amina@example.com", Phone: "+2348012345678",
	}, "CHSTH", 2025)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "CHSTH/2025/0007", app.ApplicationNumber)
	assert.Equal(t, models.ReviewPending, app.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateApplicationLostRaceReturnsExisting(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO application_sequences")).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(8))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE student_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows(applicationRowColumns).AddRow(applicationRow("app-1", "stu-1", "CHSTH/2025/0007", now)...))

	app, created, err := repo.Create(context.Background(), &models.Application{StudentID: "stu-1"}, "CHSTH", 2025)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "CHSTH/2025/0007", app.ApplicationNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateApplicationRetriesNumberCollision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO application_sequences")).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id) DO NOTHING")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: applicationNumberConstraint})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO application_sequences")).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("app-2"))
	mock.ExpectCommit()

	app, created, err := repo.Create(context.Background(), &models.Application{StudentID: "stu-2"}, "CHSTH", 2025)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "CHSTH/2025/0004", app.ApplicationNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceExamsDeletesThenInserts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM exam_results WHERE application_id = $1")).
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exam_results")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET updated_at = $2 WHERE id = $1")).
		WithArgs("app-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	exams := []models.ExamResult{{SittingNumber: 1, ExamType: "neco", ExamNumber: "B-1"}}
	require.NoError(t, repo.ReplaceExams(context.Background(), "app-1", exams, now))
	assert.Equal(t, "app-1", exams[0].ApplicationID)
	assert.NotEmpty(t, exams[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceSchoolsRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schools_attended WHERE application_id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schools_attended")).
		WithArgs(sqlmock.AnyArg(), "app-1", 1, "GSS Hadejia", 2015, 2021).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.ReplaceSchools(context.Background(), "app-1", []models.SchoolAttended{{SchoolName: "GSS Hadejia", FromYear: 2015, ToYear: 2021}}, time.Now())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDocumentsReturnsPreviousFile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	firstUpload := time.Now().Add(-time.Hour).UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_path FROM uploaded_documents WHERE application_id = $1 AND document_type = $2 FOR UPDATE")).
		WithArgs("app-1", models.DocumentBirthCert).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow("applications/app-1/birth_cert/old.pdf"))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (application_id, document_type) DO UPDATE SET")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uploaded_at"}).AddRow("doc-1", firstUpload))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET updated_at = $2 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc := &models.UploadedDocument{DocumentType: models.DocumentBirthCert, FilePath: "applications/app-1/birth_cert/new.pdf"}
	previous, err := repo.UpsertDocuments(context.Background(), "app-1", []*models.UploadedDocument{doc})
	require.NoError(t, err)
	assert.Equal(t, []string{"applications/app-1/birth_cert/old.pdf"}, previous)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "app-1", doc.ApplicationID)
	assert.Equal(t, firstUpload, doc.UploadedAt)
	assert.True(t, doc.UpdatedAt.After(firstUpload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDocumentsFirstUpload(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_path FROM uploaded_documents")).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO uploaded_documents")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uploaded_at"}).AddRow("doc-2", time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET updated_at")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	docs := []*models.UploadedDocument{{DocumentType: models.DocumentSSCEResult, FilePath: "a.pdf"}}
	previous, err := repo.UpsertDocuments(context.Background(), "app-1", docs)
	require.NoError(t, err)
	assert.Empty(t, previous)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDocumentsRollsBackWhenLaterTypeFails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_path FROM uploaded_documents")).
		WithArgs("app-1", models.DocumentSSCEResult).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow("old-ssce.pdf"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO uploaded_documents")).
		WithArgs(sqlmock.AnyArg(), "app-1", models.DocumentSSCEResult, "ssce.pdf", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uploaded_at"}).AddRow("doc-1", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_path FROM uploaded_documents")).
		WithArgs("app-1", models.DocumentBirthCert).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO uploaded_documents")).
		WithArgs(sqlmock.AnyArg(), "app-1", models.DocumentBirthCert, "birth.pdf", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	docs := []*models.UploadedDocument{
		{DocumentType: models.DocumentSSCEResult, FilePath: "ssce.pdf"},
		{DocumentType: models.DocumentBirthCert, FilePath: "birth.pdf"},
	}
	previous, err := repo.UpsertDocuments(context.Background(), "app-1", docs)
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Nil(t, previous)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSubmittedOnlyOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Now()

	query := regexp.QuoteMeta("UPDATE applications SET is_submitted = TRUE, submitted_at = $2, updated_at = $2 WHERE id = $1 AND is_submitted = FALSE")
	mock.ExpectExec(query).WithArgs("app-1", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("app-1", now).WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.MarkSubmitted(context.Background(), "app-1", now)
	require.NoError(t, err)
	second, err := repo.MarkSubmitted(context.Background(), "app-1", now)
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatusReturnsPrevious(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM applications WHERE id = $1 FOR UPDATE")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("app-1", models.ReviewPending, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	previous, err := repo.SetStatus(context.Background(), "app-1", models.ReviewPending, now)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, previous)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateColumnsBuildsAssignments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET first_choice = $2, second_choice = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("app-1", "diploma_xray", "diploma_nutrition", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateColumns(context.Background(), "app-1", []Column{{"first_choice", "diploma_xray"}, {"second_choice", "diploma_nutrition"}}, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListApplicationsWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	status := models.ReviewApproved
	submitted := true

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE 1=1 AND status = $1 AND is_submitted = $2 AND (LOWER(application_number) LIKE $3")).
		WithArgs(status, true, "%amina%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_number", "first_name", "surname", "other_name", "email", "phone", "first_choice", "second_choice", "status", "is_submitted", "submitted_at", "created_at"}).
			AddRow("app-1", "CHSTH/2025/0001", "Amina", "Bello", "", "amina@example.com", "", "diploma_xray", "diploma_nutrition", "approved", true, time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM applications WHERE 1=1 AND status = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.ApplicationFilter{Status: &status, Submitted: &submitted, Search: "Amina"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
