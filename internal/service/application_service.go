package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/repository"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
	"github.com/noah-isme/admission-api/pkg/jobs"
	"github.com/noah-isme/admission-api/pkg/storage"
)

// PassportKind addresses the passport photo in download links alongside document types.
const PassportKind = "passport"

type applicationRepository interface {
	FindByStudentID(ctx context.Context, studentID string) (*models.Application, error)
	FindByID(ctx context.Context, id string) (*models.Application, error)
	Create(ctx context.Context, app *models.Application, prefix string, year int) (*models.Application, bool, error)
	UpdateColumns(ctx context.Context, id string, columns []repository.Column, now time.Time) error
	SetPassport(ctx context.Context, id, path string, now time.Time) (*string, error)
	ReplaceSchools(ctx context.Context, applicationID string, schools []models.SchoolAttended, now time.Time) error
	ReplaceExams(ctx context.Context, applicationID string, exams []models.ExamResult, now time.Time) error
	UpsertDocuments(ctx context.Context, applicationID string, docs []*models.UploadedDocument) ([]string, error)
	ListSchools(ctx context.Context, applicationID string) ([]models.SchoolAttended, error)
	ListExams(ctx context.Context, applicationID string) ([]models.ExamResult, error)
	ListDocuments(ctx context.Context, applicationID string) ([]models.UploadedDocument, error)
	FindDocument(ctx context.Context, applicationID string, docType models.DocumentType) (*models.UploadedDocument, error)
	MarkSubmitted(ctx context.Context, id string, now time.Time) (bool, error)
}

type studentProfileLookup interface {
	ProfileByAccountID(ctx context.Context, accountID string) (*models.StudentProfile, error)
}

// ApplicationConfig tunes numbering and upload checks.
type ApplicationConfig struct {
	NumberPrefix         string
	PassportMaxBytes     int64
	DocumentMaxBytes     int64
	AllowedPhotoMIMEs    []string
	AllowedDocumentMIMEs []string
	FilesBaseURL         string
}

// Upload is one file received from a multipart form.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// Download is an opened stored file ready to stream.
type Download struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
}

// ApplicationService runs the application lifecycle for applicants.
type ApplicationService struct {
	repo      applicationRepository
	students  studentProfileLookup
	files     storage.FileStorage
	signer    *storage.SignedURLSigner
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    ApplicationConfig
	cleanup   jobEnqueuer
	now       func() time.Time
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(repo applicationRepository, students studentProfileLookup, files storage.FileStorage, signer *storage.SignedURLSigner, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config ApplicationConfig, opts ...ApplicationServiceOption) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.NumberPrefix == "" {
		config.NumberPrefix = "CHSTH"
	}
	if config.PassportMaxBytes <= 0 {
		config.PassportMaxBytes = 2 << 20
	}
	if config.DocumentMaxBytes <= 0 {
		config.DocumentMaxBytes = 5 << 20
	}
	if len(config.AllowedPhotoMIMEs) == 0 {
		config.AllowedPhotoMIMEs = []string{"image/jpeg", "image/png"}
	}
	if len(config.AllowedDocumentMIMEs) == 0 {
		config.AllowedDocumentMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	svc := &ApplicationService{
		repo: repo, students: students, files: files, signer: signer, cache: cache, metrics: metrics,
		validator: validate, logger: logger, config: config, now: time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// GetOrCreate returns the student's application, creating it with pre-filled defaults on first access.
func (s *ApplicationService) GetOrCreate(ctx context.Context, accountID string) (*models.ApplicationDetail, error) {
	app, err := s.ensure(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, app)
}

// SaveSection validates payload for one JSON section and replaces that section's data.
func (s *ApplicationService) SaveSection(ctx context.Context, accountID, section string, payload json.RawMessage) (*models.ApplicationDetail, error) {
	app, err := s.ensure(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	switch section {
	case models.SectionPersonal:
		var in models.PersonalSection
		if err := s.decode(payload, &in); err != nil {
			return nil, err
		}
		dob, _ := time.Parse("2006-01-02", in.DateOfBirth)
		err = s.repo.UpdateColumns(ctx, app.ID, []repository.Column{
			{Name: "first_name", Value: strings.TrimSpace(in.FirstName)},
			{Name: "surname", Value: strings.TrimSpace(in.Surname)},
			{Name: "other_name", Value: strings.TrimSpace(in.OtherName)},
			{Name: "date_of_birth", Value: dob},
			{Name: "phone", Value: in.Phone},
			{Name: "email", Value: strings.ToLower(strings.TrimSpace(in.Email))},
			{Name: "address", Value: strings.TrimSpace(in.Address)},
			{Name: "lga", Value: strings.TrimSpace(in.LGA)},
			{Name: "state_of_origin", Value: strings.TrimSpace(in.StateOfOrigin)},
		}, now)
	case models.SectionGuardian:
		var in models.GuardianSection
		if err := s.decode(payload, &in); err != nil {
			return nil, err
		}
		err = s.repo.UpdateColumns(ctx, app.ID, []repository.Column{
			{Name: "guardian_name", Value: strings.TrimSpace(in.GuardianName)},
			{Name: "guardian_phone", Value: in.GuardianPhone},
			{Name: "guardian_address", Value: strings.TrimSpace(in.GuardianAddress)},
			{Name: "guardian_relationship", Value: strings.TrimSpace(in.GuardianRelationship)},
		}, now)
	case models.SectionSchools:
		var in models.SchoolsSection
		if err := s.decode(payload, &in); err != nil {
			return nil, err
		}
		schools := make([]models.SchoolAttended, 0, len(in.Schools))
		for _, school := range in.Schools {
			schools = append(schools, models.SchoolAttended{SchoolName: strings.TrimSpace(school.SchoolName), FromYear: school.FromYear, ToYear: school.ToYear})
		}
		err = s.repo.ReplaceSchools(ctx, app.ID, schools, now)
	case models.SectionExams:
		var in models.ExamsSection
		if err := s.decode(payload, &in); err != nil {
			return nil, err
		}
		exams, convErr := examRows(in.Results)
		if convErr != nil {
			return nil, convErr
		}
		err = s.repo.ReplaceExams(ctx, app.ID, exams, now)
	case models.SectionCourses:
		var in models.CoursesSection
		if err := s.decode(payload, &in); err != nil {
			return nil, err
		}
		if in.FirstChoice == in.SecondChoice {
			return nil, appErrors.Clone(appErrors.ErrValidation, "first and second choice must be different courses")
		}
		err = s.repo.UpdateColumns(ctx, app.ID, []repository.Column{
			{Name: "first_choice", Value: in.FirstChoice},
			{Name: "second_choice", Value: in.SecondChoice},
		}, now)
	case models.SectionDeclaration:
		var in models.DeclarationSection
		if err := s.decode(payload, &in); err != nil {
			return nil, err
		}
		err = s.repo.UpdateColumns(ctx, app.ID, []repository.Column{
			{Name: "declaration_text", Value: strings.TrimSpace(in.DeclarationText)},
		}, now)
	case models.SectionDocuments:
		return nil, appErrors.Clone(appErrors.ErrValidation, "documents are uploaded as multipart form data")
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown section %q", section))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save "+section+" section")
	}

	s.logger.Debug("application section saved", zap.String("application_id", app.ID), zap.String("section", section))
	return s.reload(ctx, app.ID)
}

// SavePassport stores a new passport photo, replacing any previous one.
func (s *ApplicationService) SavePassport(ctx context.Context, accountID string, upload Upload) (*models.ApplicationDetail, error) {
	app, err := s.ensure(ctx, accountID)
	if err != nil {
		return nil, err
	}
	body, contentType, err := s.inspect(upload, s.config.PassportMaxBytes, s.config.AllowedPhotoMIMEs, "passport photo")
	if err != nil {
		return nil, err
	}

	key := s.newKey(app.ID, PassportKind, contentType)
	if err := s.files.Save(ctx, key, body, contentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store passport photo")
	}

	previous, err := s.repo.SetPassport(ctx, app.ID, key, s.now().UTC())
	if err != nil {
		s.removeFile(ctx, key)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save passport photo")
	}
	if previous != nil && *previous != "" && *previous != key {
		s.removeFile(ctx, *previous)
	}
	return s.reload(ctx, app.ID)
}

// SaveDocuments upserts one file per document type. All uploads are checked before any is stored.
func (s *ApplicationService) SaveDocuments(ctx context.Context, accountID string, uploads map[models.DocumentType]Upload) (*models.ApplicationDetail, error) {
	if len(uploads) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one document is required")
	}
	app, err := s.ensure(ctx, accountID)
	if err != nil {
		return nil, err
	}

	for docType := range uploads {
		if !docType.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document type %q", docType))
		}
	}

	type pending struct {
		docType     models.DocumentType
		upload      Upload
		body        io.Reader
		contentType string
	}
	var checked []pending
	for _, docType := range models.DocumentTypes {
		upload, ok := uploads[docType]
		if !ok {
			continue
		}
		body, contentType, err := s.inspect(upload, s.config.DocumentMaxBytes, s.config.AllowedDocumentMIMEs, string(docType))
		if err != nil {
			return nil, err
		}
		checked = append(checked, pending{docType: docType, upload: upload, body: body, contentType: contentType})
	}
	docs := make([]*models.UploadedDocument, 0, len(checked))
	stored := make([]string, 0, len(checked))
	for _, item := range checked {
		key := s.newKey(app.ID, string(item.docType), item.contentType)
		if err := s.files.Save(ctx, key, item.body, item.contentType); err != nil {
			for _, orphan := range stored {
				s.removeFile(ctx, orphan)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store "+string(item.docType))
		}
		stored = append(stored, key)
		docs = append(docs, &models.UploadedDocument{
			DocumentType: item.docType,
			FilePath:     key,
			OriginalName: path.Base(strings.ReplaceAll(item.upload.Filename, "\\", "/")),
			MimeType:     item.contentType,
			SizeBytes:    item.upload.Size,
		})
	}

	previous, err := s.repo.UpsertDocuments(ctx, app.ID, docs)
	if err != nil {
		for _, orphan := range stored {
			s.removeFile(ctx, orphan)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save documents")
	}
	for _, stale := range previous {
		s.removeFile(ctx, stale)
	}
	return s.reload(ctx, app.ID)
}

// Submit marks the application submitted once a passport photo and declaration are present.
// Submitting again keeps the original submission time.
func (s *ApplicationService) Submit(ctx context.Context, accountID string) (*models.ApplicationDetail, error) {
	app, err := s.ensure(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var missing []string
	if !app.HasPassport() {
		missing = append(missing, "passport photo")
	}
	if strings.TrimSpace(app.DeclarationText) == "" {
		missing = append(missing, "declaration")
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrIncomplete, "application is incomplete: missing "+strings.Join(missing, " and "))
	}

	changed, err := s.repo.MarkSubmitted(ctx, app.ID, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit application")
	}
	if changed {
		s.metrics.RecordSubmission()
		s.logger.Info("application submitted", zap.String("application_id", app.ID), zap.String("application_number", app.ApplicationNumber))
		_ = s.cache.Invalidate(ctx, SummaryCacheKey)
	}
	return s.reload(ctx, app.ID)
}

// Detail loads any application with its child records for staff.
func (s *ApplicationService) Detail(ctx context.Context, applicationID string) (*models.ApplicationDetail, error) {
	return s.reload(ctx, applicationID)
}

// OwnDetail returns the student's application without creating one.
func (s *ApplicationService) OwnDetail(ctx context.Context, accountID string) (*models.ApplicationDetail, error) {
	app, err := s.owned(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, app)
}

// DownloadLink signs a link to the student's own passport photo or document.
func (s *ApplicationService) DownloadLink(ctx context.Context, accountID, kind string) (*models.DownloadLink, error) {
	app, err := s.owned(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.link(ctx, app, kind, accountID)
}

// StaffDownloadLink signs a link to a file of any application for a staff member.
func (s *ApplicationService) StaffDownloadLink(ctx context.Context, applicationID, kind, staffID string) (*models.DownloadLink, error) {
	app, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		return nil, s.notFound(err)
	}
	return s.link(ctx, app, kind, staffID)
}

// OpenSigned validates a download token and opens the referenced file.
func (s *ApplicationService) OpenSigned(ctx context.Context, token string) (*Download, error) {
	_, key, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	body, err := s.files.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Download{Body: body, Filename: path.Base(key), ContentType: contentType}, nil
}

func (s *ApplicationService) link(ctx context.Context, app *models.Application, kind, owner string) (*models.DownloadLink, error) {
	var key string
	if kind == PassportKind {
		if !app.HasPassport() {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no passport photo uploaded")
		}
		key = *app.PassportPhoto
	} else {
		docType := models.DocumentType(kind)
		if !docType.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document type %q", kind))
		}
		doc, err := s.repo.FindDocument(ctx, app.ID, docType)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "document not uploaded")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
		}
		key = doc.FilePath
	}

	token, expiresAt, err := s.signer.Generate(owner, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &models.DownloadLink{Token: token, URL: strings.TrimRight(s.config.FilesBaseURL, "/") + "/" + token, ExpiresAt: expiresAt}, nil
}

// ensure enforces the access gate and returns the application, creating it on first use.
func (s *ApplicationService) ensure(ctx context.Context, accountID string) (*models.Application, error) {
	profile, err := s.profile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !profile.CanApply {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "")
	}

	app, err := s.repo.FindByStudentID(ctx, profile.ID)
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	defaults := models.ResolveApplicationDefaults(profile.Account(), profile.Student)
	app, created, err := s.repo.Create(ctx, &models.Application{
		StudentID: profile.ID,
		FirstName: defaults.FirstName,
		Surname:   defaults.Surname,
		Email:     defaults.Email,
		Phone:     defaults.Phone,
		Status:    models.ReviewPending,
	}, s.config.NumberPrefix, s.now().Year())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}
	if created {
		s.metrics.RecordApplicationCreated()
		s.logger.Info("application created", zap.String("application_id", app.ID), zap.String("application_number", app.ApplicationNumber))
		_ = s.cache.Invalidate(ctx, SummaryCacheKey)
	}
	return app, nil
}

func (s *ApplicationService) owned(ctx context.Context, accountID string) (*models.Application, error) {
	profile, err := s.profile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	app, err := s.repo.FindByStudentID(ctx, profile.ID)
	if err != nil {
		return nil, s.notFound(err)
	}
	return app, nil
}

func (s *ApplicationService) profile(ctx context.Context, accountID string) (*models.StudentProfile, error) {
	profile, err := s.students.ProfileByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only applicants have an application")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return profile, nil
}

func (s *ApplicationService) reload(ctx context.Context, applicationID string) (*models.ApplicationDetail, error) {
	app, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		return nil, s.notFound(err)
	}
	return s.detail(ctx, app)
}

func (s *ApplicationService) detail(ctx context.Context, app *models.Application) (*models.ApplicationDetail, error) {
	schools, err := s.repo.ListSchools(ctx, app.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schools")
	}
	exams, err := s.repo.ListExams(ctx, app.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam results")
	}
	docs, err := s.repo.ListDocuments(ctx, app.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	return &models.ApplicationDetail{Application: *app, HasPassport: app.HasPassport(), Schools: schools, Exams: exams, Documents: docs}, nil
}

func (s *ApplicationService) notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
}

func (s *ApplicationService) decode(payload json.RawMessage, dest interface{}) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "section payload is required")
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed section payload")
	}
	if err := s.validator.Struct(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	return nil
}

// inspect enforces the size limit and sniffs the content type from the file's first bytes.
func (s *ApplicationService) inspect(upload Upload, maxBytes int64, allowed []string, label string) (io.Reader, string, error) {
	if upload.Body == nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, label+" file is required")
	}
	if upload.Size > maxBytes {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds the %d byte limit", label, maxBytes))
	}
	data, err := io.ReadAll(io.LimitReader(upload.Body, maxBytes+1))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read "+label)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds the %d byte limit", label, maxBytes))
	}
	if len(data) == 0 {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, label+" file is empty")
	}
	contentType := strings.SplitN(http.DetectContentType(data), ";", 2)[0]
	for _, mt := range allowed {
		if strings.EqualFold(mt, contentType) {
			return bytes.NewReader(data), contentType, nil
		}
	}
	return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be one of %s", label, strings.Join(allowed, ", ")))
}

func (s *ApplicationService) newKey(applicationID, kind, contentType string) string {
	return fmt.Sprintf("applications/%s/%s/%s%s", applicationID, kind, uuid.NewString(), extensionFor(contentType))
}

func (s *ApplicationService) removeFile(ctx context.Context, key string) {
	if s.cleanup != nil {
		err := s.cleanup.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeDeleteFile, Payload: key})
		if err == nil {
			return
		}
		s.logger.Warn("file cleanup queue unavailable, deleting inline", zap.String("key", key), zap.Error(err))
	}
	if err := s.files.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotExist) {
		s.logger.Warn("failed to delete stored file", zap.String("key", key), zap.Error(err))
	}
}

func examRows(results []models.ExamResultInput) ([]models.ExamResult, error) {
	seen := map[int]bool{}
	rows := make([]models.ExamResult, 0, len(results))
	for _, r := range results {
		if seen[r.SittingNumber] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sitting %d appears more than once", r.SittingNumber))
		}
		seen[r.SittingNumber] = true
		rows = append(rows, models.ExamResult{
			SittingNumber:      r.SittingNumber,
			ExamType:           r.ExamType,
			ExamNumber:         strings.TrimSpace(r.ExamNumber),
			RegistrationNumber: strings.TrimSpace(r.RegistrationNumber),
			CentreNumber:       strings.TrimSpace(r.CentreNumber),
			CentreName:         strings.TrimSpace(r.CentreName),
			ExamYear:           r.ExamYear,
			EnglishGrade:       r.EnglishGrade,
			MathematicsGrade:   r.MathematicsGrade,
			BiologyGrade:       r.BiologyGrade,
			ChemistryGrade:     r.ChemistryGrade,
			PhysicsGrade:       r.PhysicsGrade,
			Subject1:           strings.TrimSpace(r.Subject1),
			Subject1Grade:      r.Subject1Grade,
			Subject2:           strings.TrimSpace(r.Subject2),
			Subject2Grade:      r.Subject2Grade,
			Subject3:           strings.TrimSpace(r.Subject3),
			Subject3Grade:      r.Subject3Grade,
			Subject4:           strings.TrimSpace(r.Subject4),
			Subject4Grade:      r.Subject4Grade,
		})
	}
	return rows, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
