package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/repository"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
	"github.com/noah-isme/admission-api/pkg/storage"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	pdfBytes = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
)

type memApplicationRepo struct {
	mu        sync.Mutex
	apps      map[string]*models.Application
	schools   map[string][]models.SchoolAttended
	exams     map[string][]models.ExamResult
	docs      map[string]map[models.DocumentType]models.UploadedDocument
	sequences map[int]int
	creates   int

	failDocument models.DocumentType
}

func newMemApplicationRepo() *memApplicationRepo {
	return &memApplicationRepo{
		apps:      map[string]*models.Application{},
		schools:   map[string][]models.SchoolAttended{},
		exams:     map[string][]models.ExamResult{},
		docs:      map[string]map[models.DocumentType]models.UploadedDocument{},
		sequences: map[int]int{},
	}
}

func (m *memApplicationRepo) FindByStudentID(ctx context.Context, studentID string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, app := range m.apps {
		if app.StudentID == studentID {
			copied := *app
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (m *memApplicationRepo) Create(ctx context.Context, app *models.Application, prefix string, year int) (*models.Application, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.apps {
		if existing.StudentID == app.StudentID {
			copied := *existing
			return &copied, false, nil
		}
	}
	m.sequences[year]++
	m.creates++
	row := *app
	row.ID = fmt.Sprintf("app-%d", m.creates)
	row.ApplicationNumber = repository.FormatApplicationNumber(prefix, year, m.sequences[year])
	m.apps[row.ID] = &row
	copied := row
	return &copied, true, nil
}

func (m *memApplicationRepo) UpdateColumns(ctx context.Context, id string, columns []repository.Column, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return sql.ErrNoRows
	}
	for _, col := range columns {
		switch col.Name {
		case "first_name":
			app.FirstName = col.Value.(string)
		case "surname":
			app.Surname = col.Value.(string)
		case "first_choice":
			app.FirstChoice = col.Value.(string)
		case "second_choice":
			app.SecondChoice = col.Value.(string)
		case "declaration_text":
			app.DeclarationText = col.Value.(string)
		case "date_of_birth":
			dob := col.Value.(time.Time)
			app.DateOfBirth = &dob
		}
	}
	app.UpdatedAt = now
	return nil
}

func (m *memApplicationRepo) SetPassport(ctx context.Context, id, path string, now time.Time) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app := m.apps[id]
	previous := app.PassportPhoto
	app.PassportPhoto = &path
	return previous, nil
}

func (m *memApplicationRepo) ReplaceSchools(ctx context.Context, applicationID string, schools []models.SchoolAttended, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schools[applicationID] = schools
	return nil
}

func (m *memApplicationRepo) ReplaceExams(ctx context.Context, applicationID string, exams []models.ExamResult, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[applicationID] = exams
	return nil
}

func (m *memApplicationRepo) UpsertDocuments(ctx context.Context, applicationID string, docs []*models.UploadedDocument) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		if doc.DocumentType == m.failDocument {
			return nil, errors.New("upsert document: connection reset")
		}
	}
	if m.docs[applicationID] == nil {
		m.docs[applicationID] = map[models.DocumentType]models.UploadedDocument{}
	}
	var replaced []string
	for _, doc := range docs {
		doc.ApplicationID = applicationID
		previous, ok := m.docs[applicationID][doc.DocumentType]
		if ok {
			doc.ID = previous.ID
			doc.UploadedAt = previous.UploadedAt
			replaced = append(replaced, previous.FilePath)
		} else {
			doc.ID = fmt.Sprintf("doc-%s", doc.DocumentType)
			doc.UploadedAt = time.Now()
		}
		m.docs[applicationID][doc.DocumentType] = *doc
	}
	return replaced, nil
}

func (m *memApplicationRepo) ListSchools(ctx context.Context, applicationID string) ([]models.SchoolAttended, error) {
	return m.schools[applicationID], nil
}

func (m *memApplicationRepo) ListExams(ctx context.Context, applicationID string) ([]models.ExamResult, error) {
	return m.exams[applicationID], nil
}

func (m *memApplicationRepo) ListDocuments(ctx context.Context, applicationID string) ([]models.UploadedDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := []models.UploadedDocument{}
	for _, doc := range m.docs[applicationID] {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *memApplicationRepo) FindDocument(ctx context.Context, applicationID string, docType models.DocumentType) (*models.UploadedDocument, error) {
	doc, ok := m.docs[applicationID][docType]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (m *memApplicationRepo) MarkSubmitted(ctx context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app := m.apps[id]
	if app.IsSubmitted {
		return false, nil
	}
	app.IsSubmitted = true
	app.SubmittedAt = &now
	return true, nil
}

type memProfiles map[string]*models.StudentProfile

func (m memProfiles) ProfileByAccountID(ctx context.Context, accountID string) (*models.StudentProfile, error) {
	if p, ok := m[accountID]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type applicationFixture struct {
	svc      *ApplicationService
	repo     *memApplicationRepo
	files    *memStorage
	profiles memProfiles
}

func newApplicationFixture(t *testing.T) *applicationFixture {
	t.Helper()
	repo := newMemApplicationRepo()
	files := newMemStorage()
	refID := "ref-1"
	profiles := memProfiles{
		"acc-1": {Student: models.Student{ID: "stu-1", AccountID: "acc-1", Phone: "+2348012345678", CanApply: true, ReferralCodeID: &refID}, Username: "amina", Email: "amina@example.com", FirstName: "Amina", LastName: "Bello"},
		"acc-2": {Student: models.Student{ID: "stu-2", AccountID: "acc-2"}, Username: "musa", Email: "musa@example.com"},
	}
	svc := NewApplicationService(repo, profiles, files, storage.NewSignedURLSigner("secret", time.Minute), nil, NewMetricsService(), nil, nil, ApplicationConfig{
		NumberPrefix:     "CHSTH",
		PassportMaxBytes: 1024,
		DocumentMaxBytes: 1024,
		FilesBaseURL:     "/api/v1/files",
	})
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	return &applicationFixture{svc: svc, repo: repo, files: files, profiles: profiles}
}

func codeOf(err error) string {
	return appErrors.FromError(err).Code
}

func TestGetOrCreateRequiresAccess(t *testing.T) {
	f := newApplicationFixture(t)
	_, err := f.svc.GetOrCreate(context.Background(), "acc-2")
	assert.Equal(t, appErrors.ErrAccessDenied.Code, codeOf(err))
	assert.Empty(t, f.repo.apps)

	_, err = f.svc.GetOrCreate(context.Background(), "staff-1")
	assert.Equal(t, appErrors.ErrForbidden.Code, codeOf(err))
}

func TestGetOrCreateIsIdempotentWithDefaults(t *testing.T) {
	f := newApplicationFixture(t)

	first, err := f.svc.GetOrCreate(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "CHSTH/2025/0001", first.ApplicationNumber)
	assert.Equal(t, "Amina", first.FirstName)
	assert.Equal(t, "Bello", first.Surname)
	assert.Equal(t, "amina@example.com", first.Email)
	assert.Equal(t, "+2348012345678", first.Phone)
	assert.Equal(t, models.ReviewPending, first.Status)

	second, err := f.svc.GetOrCreate(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.repo.creates)
}

func TestConcurrentCreationAssignsDistinctNumbers(t *testing.T) {
	f := newApplicationFixture(t)
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("acc-c%d", i)
		f.profiles[id] = &models.StudentProfile{Student: models.Student{ID: "stu-" + id, AccountID: id, HasPaid: true, CanApply: true}}
	}

	var wg sync.WaitGroup
	numbers := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			detail, err := f.svc.GetOrCreate(context.Background(), id)
			if assert.NoError(t, err) {
				numbers <- detail.ApplicationNumber
			}
		}(fmt.Sprintf("acc-c%d", i))
	}
	wg.Wait()
	close(numbers)

	pattern := regexp.MustCompile(`^CHSTH/2025/\d{4}$`)
	seen := map[string]bool{}
	for n := range numbers {
		assert.Regexp(t, pattern, n)
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, 50)
}

func TestSaveSectionCourses(t *testing.T) {
	f := newApplicationFixture(t)

	_, err := f.svc.SaveSection(context.Background(), "acc-1", models.SectionCourses, json.RawMessage(`{"first_choice":"diploma_xray","second_choice":"diploma_xray"}`))
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	_, err = f.svc.SaveSection(context.Background(), "acc-1", models.SectionCourses, json.RawMessage(`{"first_choice":"diploma_xray","second_choice":"astronomy"}`))
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	detail, err := f.svc.SaveSection(context.Background(), "acc-1", models.SectionCourses, json.RawMessage(`{"first_choice":"diploma_xray","second_choice":"diploma_nutrition"}`))
	require.NoError(t, err)
	assert.Equal(t, "diploma_xray", detail.FirstChoice)
	assert.Equal(t, "diploma_nutrition", detail.SecondChoice)
}

func TestSaveSectionExamsReplacesSet(t *testing.T) {
	f := newApplicationFixture(t)
	first := `{"results":[{"sitting_number":1,"exam_type":"waec","exam_number":"A-1","exam_year":2020,"english_grade":"B2","mathematics_grade":"C4"}]}`
	second := `{"results":[{"sitting_number":2,"exam_type":"neco","exam_number":"B-2","exam_year":2021,"english_grade":"A1","mathematics_grade":"awaiting"}]}`

	_, err := f.svc.SaveSection(context.Background(), "acc-1", models.SectionExams, json.RawMessage(first))
	require.NoError(t, err)
	detail, err := f.svc.SaveSection(context.Background(), "acc-1", models.SectionExams, json.RawMessage(second))
	require.NoError(t, err)

	require.Len(t, detail.Exams, 1)
	assert.Equal(t, "B-2", detail.Exams[0].ExamNumber)
	assert.Equal(t, "neco", detail.Exams[0].ExamType)
}

func TestSaveSectionExamsValidation(t *testing.T) {
	f := newApplicationFixture(t)
	cases := map[string]string{
		"bad grade":       `{"results":[{"sitting_number":1,"exam_type":"waec","exam_number":"A","exam_year":2020,"english_grade":"Z9","mathematics_grade":"C4"}]}`,
		"duplicate":       `{"results":[{"sitting_number":1,"exam_type":"waec","exam_number":"A","exam_year":2020,"english_grade":"B2","mathematics_grade":"C4"},{"sitting_number":1,"exam_type":"neco","exam_number":"B","exam_year":2021,"english_grade":"B2","mathematics_grade":"C4"}]}`,
		"third sitting":   `{"results":[{"sitting_number":3,"exam_type":"waec","exam_number":"A","exam_year":2020,"english_grade":"B2","mathematics_grade":"C4"}]}`,
		"malformed":       `{"results":`,
		"missing subject": `{"results":[{"sitting_number":1,"exam_type":"waec","exam_number":"A","exam_year":2020,"english_grade":"B2","mathematics_grade":"C4","subject_1":"Geography"}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SaveSection(context.Background(), "acc-1", models.SectionExams, json.RawMessage(payload))
			assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))
		})
	}
}

func TestSaveSectionPersonalAndUnknown(t *testing.T) {
	f := newApplicationFixture(t)
	payload := `{"first_name":"Amina","surname":"Bello","date_of_birth":"2004-05-17","phone":"+2348012345678","email":"amina@example.com","address":"12 Kano Road","lga":"Hadejia","state_of_origin":"Jigawa"}`

	detail, err := f.svc.SaveSection(context.Background(), "acc-1", models.SectionPersonal, json.RawMessage(payload))
	require.NoError(t, err)
	require.NotNil(t, detail.DateOfBirth)
	assert.Equal(t, 2004, detail.DateOfBirth.Year())

	_, err = f.svc.SaveSection(context.Background(), "acc-1", models.SectionPersonal, json.RawMessage(`{"first_name":"Amina","date_of_birth":"17/05/2004"}`))
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	_, err = f.svc.SaveSection(context.Background(), "acc-1", "hobbies", json.RawMessage(`{}`))
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))
}

func TestSavePassportReplacesPreviousFile(t *testing.T) {
	f := newApplicationFixture(t)

	first, err := f.svc.SavePassport(context.Background(), "acc-1", Upload{Filename: "me.png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	assert.True(t, first.HasPassport)
	firstKey := *first.PassportPhoto
	assert.True(t, strings.HasSuffix(firstKey, ".png"))

	second, err := f.svc.SavePassport(context.Background(), "acc-1", Upload{Filename: "me-again.png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	assert.NotEqual(t, firstKey, *second.PassportPhoto)
	assert.Equal(t, []string{*second.PassportPhoto}, f.files.keys())
}

func TestSavePassportRejectsBadFiles(t *testing.T) {
	f := newApplicationFixture(t)

	_, err := f.svc.SavePassport(context.Background(), "acc-1", Upload{Filename: "cv.pdf", Size: int64(len(pdfBytes)), Body: bytes.NewReader(pdfBytes)})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{1}, 2048)...)
	_, err = f.svc.SavePassport(context.Background(), "acc-1", Upload{Filename: "big.png", Size: -1, Body: bytes.NewReader(big)})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))
	assert.Empty(t, f.files.keys())
}

func TestSaveDocumentsUpsertsPerType(t *testing.T) {
	f := newApplicationFixture(t)
	upload := func(name string) Upload {
		return Upload{Filename: name, Size: int64(len(pdfBytes)), Body: bytes.NewReader(pdfBytes)}
	}

	_, err := f.svc.SaveDocuments(context.Background(), "acc-1", map[models.DocumentType]Upload{
		models.DocumentBirthCert:  upload("birth.pdf"),
		models.DocumentSSCEResult: upload("waec.pdf"),
	})
	require.NoError(t, err)

	detail, err := f.svc.SaveDocuments(context.Background(), "acc-1", map[models.DocumentType]Upload{
		models.DocumentBirthCert: upload("birth-v2.pdf"),
	})
	require.NoError(t, err)

	require.Len(t, detail.Documents, 2)
	birth := f.repo.docs[detail.ID][models.DocumentBirthCert]
	assert.Equal(t, "birth-v2.pdf", birth.OriginalName)
	assert.Len(t, f.files.keys(), 2)

	_, err = f.svc.SaveDocuments(context.Background(), "acc-1", map[models.DocumentType]Upload{"tax_return": upload("x.pdf")})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))
}

func TestSaveDocumentsWritesNothingWhenOneTypeFails(t *testing.T) {
	f := newApplicationFixture(t)
	upload := func(name string) Upload {
		return Upload{Filename: name, Size: int64(len(pdfBytes)), Body: bytes.NewReader(pdfBytes)}
	}

	first, err := f.svc.SaveDocuments(context.Background(), "acc-1", map[models.DocumentType]Upload{
		models.DocumentSSCEResult: upload("waec.pdf"),
	})
	require.NoError(t, err)
	keysBefore := f.files.keys()

	f.repo.failDocument = models.DocumentBirthCert
	_, err = f.svc.SaveDocuments(context.Background(), "acc-1", map[models.DocumentType]Upload{
		models.DocumentSSCEResult: upload("waec-v2.pdf"),
		models.DocumentBirthCert:  upload("birth.pdf"),
	})
	assert.Equal(t, appErrors.ErrInternal.Code, codeOf(err))

	docs := f.repo.docs[first.ID]
	require.Len(t, docs, 1)
	assert.Equal(t, "waec.pdf", docs[models.DocumentSSCEResult].OriginalName)
	assert.Equal(t, keysBefore, f.files.keys())
}

func TestSubmitGate(t *testing.T) {
	f := newApplicationFixture(t)

	_, err := f.svc.Submit(context.Background(), "acc-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrIncomplete.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "passport photo")
	for _, app := range f.repo.apps {
		assert.False(t, app.IsSubmitted)
	}

	_, err = f.svc.SavePassport(context.Background(), "acc-1", Upload{Filename: "me.png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	_, err = f.svc.SaveSection(context.Background(), "acc-1", models.SectionDeclaration, json.RawMessage(`{"declaration_text":"   "}`))
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), "acc-1")
	assert.Equal(t, appErrors.ErrIncomplete.Code, codeOf(err))

	_, err = f.svc.SaveSection(context.Background(), "acc-1", models.SectionDeclaration, json.RawMessage(`{"declaration_text":"I declare the above is true."}`))
	require.NoError(t, err)
	submitted, err := f.svc.Submit(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.True(t, submitted.IsSubmitted)
	assert.Equal(t, models.ReviewPending, submitted.Status)
	firstAt := *submitted.SubmittedAt

	f.svc.now = func() time.Time { return firstAt.Add(time.Hour) }
	again, err := f.svc.Submit(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, firstAt, *again.SubmittedAt)
}

func TestDownloadLinkRoundTrip(t *testing.T) {
	f := newApplicationFixture(t)
	_, err := f.svc.SaveDocuments(context.Background(), "acc-1", map[models.DocumentType]Upload{
		models.DocumentIndigeneCert: {Filename: "indigene.pdf", Size: int64(len(pdfBytes)), Body: bytes.NewReader(pdfBytes)},
	})
	require.NoError(t, err)

	link, err := f.svc.DownloadLink(context.Background(), "acc-1", string(models.DocumentIndigeneCert))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/files/"))

	download, err := f.svc.OpenSigned(context.Background(), link.Token)
	require.NoError(t, err)
	defer download.Body.Close()
	data, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, data)
	assert.Equal(t, "application/pdf", download.ContentType)

	_, err = f.svc.DownloadLink(context.Background(), "acc-1", PassportKind)
	assert.Equal(t, appErrors.ErrNotFound.Code, codeOf(err))

	_, err = f.svc.OpenSigned(context.Background(), link.Token+"x")
	assert.Equal(t, appErrors.ErrForbidden.Code, codeOf(err))
}
