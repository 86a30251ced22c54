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
	"github.com/lib/pq"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/pkg/database"
)

const (
	applicationColumns = `id, student_id, application_number, passport_photo, first_name, surname, other_name, date_of_birth, phone, email, address, lga, state_of_origin,
guardian_name, guardian_phone, guardian_address, guardian_relationship, first_choice, second_choice, declaration_text, status, is_submitted, submitted_at, created_at, updated_at`
	applicationListColumns = `id, application_number, first_name, surname, other_name, email, phone, first_choice, second_choice, status, is_submitted, submitted_at, created_at`
	documentColumns        = `id, application_id, document_type, file_path, original_name, mime_type, size_bytes, uploaded_at, updated_at`

	applicationNumberConstraint = "applications_application_number_key"
	maxNumberAttempts           = 3
)

// Column is a single column assignment used by section updates.
type Column struct {
	Name  string
	Value interface{}
}

// ApplicationRepository persists applications and their owned child records.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs an ApplicationRepository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// FindByStudentID returns the application owned by the student.
func (r *ApplicationRepository) FindByStudentID(ctx context.Context, studentID string) (*models.Application, error) {
	return r.findOne(ctx, "student_id = $1", studentID)
}

// FindByID returns an application by identifier.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *ApplicationRepository) findOne(ctx context.Context, predicate string, arg interface{}) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE ` + predicate
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return &app, nil
}

// Create inserts app with a freshly assigned PREFIX/YEAR/NNNN number. When the student
// already has an application (a concurrent creator won), the existing row is returned
// with created=false and the number is not consumed.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application, prefix string, year int) (*models.Application, bool, error) {
	var lastErr error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		stored, created, err := r.createOnce(ctx, app, prefix, year)
		if err == nil {
			return stored, created, nil
		}
		if !database.IsUniqueViolation(err, applicationNumberConstraint) {
			return nil, false, err
		}
		lastErr = err
	}
	return nil, false, fmt.Errorf("assign application number after %d attempts: %w", maxNumberAttempts, lastErr)
}

func (r *ApplicationRepository) createOnce(ctx context.Context, app *models.Application, prefix string, year int) (_ *models.Application, _ bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin create application: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The upsert row-locks the year's counter until commit, serialising number assignment.
	// The counter never falls behind numbers already present for the year.
	const nextSeq = `WITH existing AS (
SELECT COALESCE(MAX(CAST(split_part(application_number, '/', 3) AS INTEGER)), 0) AS max_seq
FROM applications WHERE application_number LIKE $2
)
INSERT INTO application_sequences (year, last_value)
SELECT $1, max_seq + 1 FROM existing
ON CONFLICT (year) DO UPDATE SET last_value = GREATEST(application_sequences.last_value, EXCLUDED.last_value - 1) + 1
RETURNING last_value`
	var seq int
	if err = tx.GetContext(ctx, &seq, nextSeq, year, fmt.Sprintf("%s/%04d/%%", prefix, year)); err != nil {
		return nil, false, fmt.Errorf("next application sequence: %w", err)
	}

	now := time.Now().UTC()
	row := *app
	row.ID = uuid.NewString()
	row.ApplicationNumber = FormatApplicationNumber(prefix, year, seq)
	if row.Status == "" {
		row.Status = models.ReviewPending
	}
	row.CreatedAt = now
	row.UpdatedAt = now

	const insert = `INSERT INTO applications (id, student_id, application_number, first_name, surname, email, phone, status, is_submitted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $10)
ON CONFLICT (student_id) DO NOTHING
RETURNING id`
	var id string
	err = tx.GetContext(ctx, &id, insert, row.ID, row.StudentID, row.ApplicationNumber, row.FirstName, row.Surname, row.Email, row.Phone, row.Status, row.CreatedAt, row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		if rbErr := tx.Rollback(); rbErr != nil {
			return nil, false, fmt.Errorf("rollback create application: %w", rbErr)
		}
		existing, findErr := r.FindByStudentID(ctx, row.StudentID)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert application: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit create application: %w", err)
	}
	return &row, true, nil
}

// FormatApplicationNumber renders PREFIX/YEAR/NNNN.
func FormatApplicationNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s/%04d/%04d", prefix, year, seq)
}

// UpdateColumns overwrites the given columns of one application.
func (r *ApplicationRepository) UpdateColumns(ctx context.Context, id string, columns []Column, now time.Time) error {
	if len(columns) == 0 {
		return nil
	}
	sets := make([]string, 0, len(columns)+1)
	args := make([]interface{}, 0, len(columns)+2)
	args = append(args, id)
	for _, col := range columns {
		args = append(args, col.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", col.Name, len(args)))
	}
	args = append(args, now)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))

	query := fmt.Sprintf("UPDATE applications SET %s WHERE id = $1", strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("application rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetPassport stores a new passport photo path and returns the one it replaced.
func (r *ApplicationRepository) SetPassport(ctx context.Context, id, path string, now time.Time) (previous *string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin set passport: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &previous, `SELECT passport_photo FROM applications WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock application passport: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE applications SET passport_photo = $2, updated_at = $3 WHERE id = $1`, id, path, now); err != nil {
		return nil, fmt.Errorf("update passport: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit set passport: %w", err)
	}
	return previous, nil
}

// ReplaceSchools swaps the whole schools section for the given rows.
func (r *ApplicationRepository) ReplaceSchools(ctx context.Context, applicationID string, schools []models.SchoolAttended, now time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace schools: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.replaceSchoolsTx(ctx, tx, applicationID, schools); err != nil {
		return err
	}
	if err = touchApplicationTx(ctx, tx, applicationID, now); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace schools: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) replaceSchoolsTx(ctx context.Context, tx *sqlx.Tx, applicationID string, schools []models.SchoolAttended) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM schools_attended WHERE application_id = $1`, applicationID); err != nil {
		return fmt.Errorf("clear schools: %w", err)
	}
	const insert = `INSERT INTO schools_attended (id, application_id, position, school_name, from_year, to_year) VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range schools {
		school := &schools[i]
		school.ID = uuid.NewString()
		school.ApplicationID = applicationID
		school.Position = i + 1
		if _, err := tx.ExecContext(ctx, insert, school.ID, applicationID, school.Position, school.SchoolName, school.FromYear, school.ToYear); err != nil {
			return fmt.Errorf("insert school: %w", err)
		}
	}
	return nil
}

// ReplaceExams swaps the whole exams section for the given sittings.
func (r *ApplicationRepository) ReplaceExams(ctx context.Context, applicationID string, exams []models.ExamResult, now time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace exams: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.replaceExamsTx(ctx, tx, applicationID, exams); err != nil {
		return err
	}
	if err = touchApplicationTx(ctx, tx, applicationID, now); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace exams: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) replaceExamsTx(ctx context.Context, tx *sqlx.Tx, applicationID string, exams []models.ExamResult) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM exam_results WHERE application_id = $1`, applicationID); err != nil {
		return fmt.Errorf("clear exam results: %w", err)
	}
	const insert = `INSERT INTO exam_results (id, application_id, sitting_number, exam_type, exam_number, registration_number, centre_number, centre_name, exam_year,
english_grade, mathematics_grade, biology_grade, chemistry_grade, physics_grade,
subject_1, subject_1_grade, subject_2, subject_2_grade, subject_3, subject_3_grade, subject_4, subject_4_grade)
VALUES (:id, :application_id, :sitting_number, :exam_type, :exam_number, :registration_number, :centre_number, :centre_name, :exam_year,
:english_grade, :mathematics_grade, :biology_grade, :chemistry_grade, :physics_grade,
:subject_1, :subject_1_grade, :subject_2, :subject_2_grade, :subject_3, :subject_3_grade, :subject_4, :subject_4_grade)`
	for i := range exams {
		exam := &exams[i]
		exam.ID = uuid.NewString()
		exam.ApplicationID = applicationID
		if _, err := tx.NamedExecContext(ctx, insert, exam); err != nil {
			return fmt.Errorf("insert exam result: %w", err)
		}
	}
	return nil
}

func touchApplicationTx(ctx context.Context, tx *sqlx.Tx, applicationID string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE applications SET updated_at = $2 WHERE id = $1`, applicationID, now); err != nil {
		return fmt.Errorf("touch application: %w", err)
	}
	return nil
}

// UpsertDocuments stores every doc as the file for its type in one transaction, replacing
// previous uploads in place. The original uploaded_at is kept on replace. The returned
// slice holds the replaced file paths; nothing is written when any document fails.
func (r *ApplicationRepository) UpsertDocuments(ctx context.Context, applicationID string, docs []*models.UploadedDocument) (previous []string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert documents: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, doc := range docs {
		doc.ApplicationID = applicationID
		var old string
		if old, err = upsertDocumentTx(ctx, tx, doc, now); err != nil {
			return nil, err
		}
		if old != "" && old != doc.FilePath {
			previous = append(previous, old)
		}
	}

	if err = touchApplicationTx(ctx, tx, applicationID, now); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert documents: %w", err)
	}
	return previous, nil
}

func upsertDocumentTx(ctx context.Context, tx *sqlx.Tx, doc *models.UploadedDocument, now time.Time) (string, error) {
	var previous string
	const lookup = `SELECT file_path FROM uploaded_documents WHERE application_id = $1 AND document_type = $2 FOR UPDATE`
	err := tx.GetContext(ctx, &previous, lookup, doc.ApplicationID, doc.DocumentType)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lock document: %w", err)
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.UploadedAt = now
	doc.UpdatedAt = now
	const upsert = `INSERT INTO uploaded_documents (id, application_id, document_type, file_path, original_name, mime_type, size_bytes, uploaded_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (application_id, document_type) DO UPDATE SET
file_path = EXCLUDED.file_path, original_name = EXCLUDED.original_name, mime_type = EXCLUDED.mime_type,
size_bytes = EXCLUDED.size_bytes, updated_at = EXCLUDED.updated_at
RETURNING id, uploaded_at`
	var stored struct {
		ID         string    `db:"id"`
		UploadedAt time.Time `db:"uploaded_at"`
	}
	if err := tx.GetContext(ctx, &stored, upsert, doc.ID, doc.ApplicationID, doc.DocumentType, doc.FilePath, doc.OriginalName, doc.MimeType, doc.SizeBytes, doc.UploadedAt, doc.UpdatedAt); err != nil {
		return "", fmt.Errorf("upsert %s document: %w", doc.DocumentType, err)
	}
	doc.ID = stored.ID
	doc.UploadedAt = stored.UploadedAt
	return previous, nil
}

// ListSchools returns schools in form order.
func (r *ApplicationRepository) ListSchools(ctx context.Context, applicationID string) ([]models.SchoolAttended, error) {
	const query = `SELECT id, application_id, position, school_name, from_year, to_year FROM schools_attended WHERE application_id = $1 ORDER BY position`
	schools := []models.SchoolAttended{}
	if err := r.db.SelectContext(ctx, &schools, query, applicationID); err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

// ListExams returns exam sittings ordered by sitting number.
func (r *ApplicationRepository) ListExams(ctx context.Context, applicationID string) ([]models.ExamResult, error) {
	const query = `SELECT id, application_id, sitting_number, exam_type, exam_number, registration_number, centre_number, centre_name, exam_year,
english_grade, mathematics_grade, biology_grade, chemistry_grade, physics_grade,
subject_1, subject_1_grade, subject_2, subject_2_grade, subject_3, subject_3_grade, subject_4, subject_4_grade
FROM exam_results WHERE application_id = $1 ORDER BY sitting_number`
	exams := []models.ExamResult{}
	if err := r.db.SelectContext(ctx, &exams, query, applicationID); err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	return exams, nil
}

// ListDocuments returns the uploaded documents of an application.
func (r *ApplicationRepository) ListDocuments(ctx context.Context, applicationID string) ([]models.UploadedDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM uploaded_documents WHERE application_id = $1 ORDER BY document_type`
	docs := []models.UploadedDocument{}
	if err := r.db.SelectContext(ctx, &docs, query, applicationID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// FindDocument returns the document of one type.
func (r *ApplicationRepository) FindDocument(ctx context.Context, applicationID string, docType models.DocumentType) (*models.UploadedDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM uploaded_documents WHERE application_id = $1 AND document_type = $2`
	var doc models.UploadedDocument
	if err := r.db.GetContext(ctx, &doc, query, applicationID, docType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// MarkSubmitted flags the application as submitted once. It reports false when it
// already was, leaving the original submitted_at in place.
func (r *ApplicationRepository) MarkSubmitted(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `UPDATE applications SET is_submitted = TRUE, submitted_at = $2, updated_at = $2 WHERE id = $1 AND is_submitted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("submit application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("application rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetStatus changes the review status and returns the previous one.
func (r *ApplicationRepository) SetStatus(ctx context.Context, id string, status models.ReviewStatus, now time.Time) (previous models.ReviewStatus, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin set review status: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &previous, `SELECT status FROM applications WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("lock application status: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`, id, status, now); err != nil {
		return "", fmt.Errorf("update review status: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit review status: %w", err)
	}
	return previous, nil
}

// BulkSetStatus applies one review status to many applications and returns how many changed.
func (r *ApplicationRepository) BulkSetStatus(ctx context.Context, ids []string, status models.ReviewStatus, now time.Time) (int, error) {
	const query = `UPDATE applications SET status = $2, updated_at = $3 WHERE id = ANY($1) AND status <> $2`
	res, err := r.db.ExecContext(ctx, query, pq.Array(ids), status, now)
	if err != nil {
		return 0, fmt.Errorf("bulk update review status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("application rows affected: %w", err)
	}
	return int(affected), nil
}

// List returns applications matching the filter with total count.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationListItem, int, error) {
	where, args := buildApplicationFilter(filter)
	page, size := models.Normalize(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s FROM applications %s ORDER BY created_at DESC, application_number LIMIT %d OFFSET %d", applicationListColumns, where, size, (page-1)*size)

	items := []models.ApplicationListItem{}
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM applications "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return items, total, nil
}

// ListAll returns every application matching the filter, ignoring pagination.
func (r *ApplicationRepository) ListAll(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationListItem, error) {
	where, args := buildApplicationFilter(filter)
	query := fmt.Sprintf("SELECT %s FROM applications %s ORDER BY application_number", applicationListColumns, where)
	items := []models.ApplicationListItem{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list all applications: %w", err)
	}
	return items, nil
}

// CountByStatus groups applications by review status.
func (r *ApplicationRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS total FROM applications GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count applications by status: %w", err)
	}
	return counts, nil
}

// CountSubmitted returns the number of submitted applications.
func (r *ApplicationRepository) CountSubmitted(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM applications WHERE is_submitted`); err != nil {
		return 0, fmt.Errorf("count submitted applications: %w", err)
	}
	return total, nil
}

func buildApplicationFilter(filter models.ApplicationFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Submitted != nil {
		args = append(args, *filter.Submitted)
		conditions = append(conditions, fmt.Sprintf("is_submitted = $%d", len(args)))
	}
	if filter.FirstChoice != "" {
		args = append(args, filter.FirstChoice)
		conditions = append(conditions, fmt.Sprintf("first_choice = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(LOWER(application_number) LIKE $%d OR LOWER(first_name) LIKE $%d OR LOWER(surname) LIKE $%d OR LOWER(email) LIKE $%d)", n, n, n, n))
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
