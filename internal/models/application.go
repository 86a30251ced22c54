package models

import (
	"time"
)

// ReviewStatus is the staff decision on an application, independent of submission.
type ReviewStatus string

const (
	ReviewPending    ReviewStatus = "pending"
	ReviewApproved   ReviewStatus = "approved"
	ReviewRejected   ReviewStatus = "rejected"
	ReviewIncomplete ReviewStatus = "incomplete"
)

// Valid reports whether the status is one of the known values.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected, ReviewIncomplete:
		return true
	}
	return false
}

// Application is the admission form owned 1:1 by a student.
type Application struct {
	ID                   string       `db:"id" json:"id"`
	StudentID            string       `db:"student_id" json:"student_id"`
	ApplicationNumber    string       `db:"application_number" json:"application_number"`
	PassportPhoto        *string      `db:"passport_photo" json:"-"`
	FirstName            string       `db:"first_name" json:"first_name"`
	Surname              string       `db:"surname" json:"surname"`
	OtherName            string       `db:"other_name" json:"other_name"`
	DateOfBirth          *time.Time   `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Phone                string       `db:"phone" json:"phone"`
	Email                string       `db:"email" json:"email"`
	Address              string       `db:"address" json:"address"`
	LGA                  string       `db:"lga" json:"lga"`
	StateOfOrigin        string       `db:"state_of_origin" json:"state_of_origin"`
	GuardianName         string       `db:"guardian_name" json:"guardian_name"`
	GuardianPhone        string       `db:"guardian_phone" json:"guardian_phone"`
	GuardianAddress      string       `db:"guardian_address" json:"guardian_address"`
	GuardianRelationship string       `db:"guardian_relationship" json:"guardian_relationship"`
	FirstChoice          string       `db:"first_choice" json:"first_choice"`
	SecondChoice         string       `db:"second_choice" json:"second_choice"`
	DeclarationText      string       `db:"declaration_text" json:"declaration_text"`
	Status               ReviewStatus `db:"status" json:"status"`
	IsSubmitted          bool         `db:"is_submitted" json:"is_submitted"`
	SubmittedAt          *time.Time   `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at" json:"updated_at"`
}

// HasPassport reports whether a passport photo is on file.
func (a Application) HasPassport() bool {
	return a.PassportPhoto != nil && *a.PassportPhoto != ""
}

// FullName renders surname, first name and other name in form order.
func (a Application) FullName() string {
	name := a.Surname
	for _, part := range []string{a.FirstName, a.OtherName} {
		if part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += part
	}
	return name
}

// ApplicationDefaults carries the values pre-filled into a new application.
type ApplicationDefaults struct {
	FirstName string
	Surname   string
	Email     string
	Phone     string
}

// ResolveApplicationDefaults derives pre-fill values from the account and student profile.
// Missing values stay empty rather than being guessed.
func ResolveApplicationDefaults(account Account, student Student) ApplicationDefaults {
	return ApplicationDefaults{
		FirstName: account.FirstName,
		Surname:   account.LastName,
		Email:     account.Email,
		Phone:     student.Phone,
	}
}

// SchoolAttended is one row of the schools section.
type SchoolAttended struct {
	ID            string `db:"id" json:"id"`
	ApplicationID string `db:"application_id" json:"application_id"`
	Position      int    `db:"position" json:"position"`
	SchoolName    string `db:"school_name" json:"school_name"`
	FromYear      int    `db:"from_year" json:"from_year"`
	ToYear        int    `db:"to_year" json:"to_year"`
}

// ExamResult is one O-level sitting. Sitting numbers are unique per application.
type ExamResult struct {
	ID                 string `db:"id" json:"id"`
	ApplicationID      string `db:"application_id" json:"application_id"`
	SittingNumber      int    `db:"sitting_number" json:"sitting_number"`
	ExamType           string `db:"exam_type" json:"exam_type"`
	ExamNumber         string `db:"exam_number" json:"exam_number"`
	RegistrationNumber string `db:"registration_number" json:"registration_number"`
	CentreNumber       string `db:"centre_number" json:"centre_number"`
	CentreName         string `db:"centre_name" json:"centre_name"`
	ExamYear           int    `db:"exam_year" json:"exam_year"`
	EnglishGrade       string `db:"english_grade" json:"english_grade"`
	MathematicsGrade   string `db:"mathematics_grade" json:"mathematics_grade"`
	BiologyGrade       string `db:"biology_grade" json:"biology_grade"`
	ChemistryGrade     string `db:"chemistry_grade" json:"chemistry_grade"`
	PhysicsGrade       string `db:"physics_grade" json:"physics_grade"`
	Subject1           string `db:"subject_1" json:"subject_1"`
	Subject1Grade      string `db:"subject_1_grade" json:"subject_1_grade"`
	Subject2           string `db:"subject_2" json:"subject_2"`
	Subject2Grade      string `db:"subject_2_grade" json:"subject_2_grade"`
	Subject3           string `db:"subject_3" json:"subject_3"`
	Subject3Grade      string `db:"subject_3_grade" json:"subject_3_grade"`
	Subject4           string `db:"subject_4" json:"subject_4"`
	Subject4Grade      string `db:"subject_4_grade" json:"subject_4_grade"`
}

// DocumentType keys uploaded credentials; one row per type per application.
type DocumentType string

const (
	DocumentSSCEResult       DocumentType = "ssce_result"
	DocumentPrimaryCert      DocumentType = "primary_cert"
	DocumentIndigeneCert     DocumentType = "indigene_cert"
	DocumentBirthCert        DocumentType = "birth_cert"
	DocumentOtherCredentials DocumentType = "other_credentials"
)

// DocumentTypes lists the accepted document types in form order.
var DocumentTypes = []DocumentType{
	DocumentSSCEResult,
	DocumentPrimaryCert,
	DocumentIndigeneCert,
	DocumentBirthCert,
	DocumentOtherCredentials,
}

// Valid reports whether the type is accepted.
func (t DocumentType) Valid() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// UploadedDocument is the stored credential for one document type.
type UploadedDocument struct {
	ID            string       `db:"id" json:"id"`
	ApplicationID string       `db:"application_id" json:"application_id"`
	DocumentType  DocumentType `db:"document_type" json:"document_type"`
	FilePath      string       `db:"file_path" json:"-"`
	OriginalName  string       `db:"original_name" json:"original_name"`
	MimeType      string       `db:"mime_type" json:"mime_type"`
	SizeBytes     int64        `db:"size_bytes" json:"size_bytes"`
	UploadedAt    time.Time    `db:"uploaded_at" json:"uploaded_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail bundles an application with its child records.
type ApplicationDetail struct {
	Application
	HasPassport bool               `json:"has_passport"`
	Schools     []SchoolAttended   `json:"schools"`
	Exams       []ExamResult       `json:"exams"`
	Documents   []UploadedDocument `json:"documents"`
}

// ApplicationFilter narrows staff listings.
type ApplicationFilter struct {
	Status      *ReviewStatus
	Submitted   *bool
	FirstChoice string
	Search      string
	Page        int
	PageSize    int
}

// ApplicationListItem is a row of the staff listing and roster export.
type ApplicationListItem struct {
	ID                string       `db:"id" json:"id"`
	ApplicationNumber string       `db:"application_number" json:"application_number"`
	FirstName         string       `db:"first_name" json:"first_name"`
	Surname           string       `db:"surname" json:"surname"`
	OtherName         string       `db:"other_name" json:"other_name"`
	Email             string       `db:"email" json:"email"`
	Phone             string       `db:"phone" json:"phone"`
	FirstChoice       string       `db:"first_choice" json:"first_choice"`
	SecondChoice      string       `db:"second_choice" json:"second_choice"`
	Status            ReviewStatus `db:"status" json:"status"`
	IsSubmitted       bool         `db:"is_submitted" json:"is_submitted"`
	SubmittedAt       *time.Time   `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
}

// SetReviewStatusRequest is the staff payload for a single application.
type SetReviewStatusRequest struct {
	Status ReviewStatus `json:"status" validate:"required,oneof=pending approved rejected incomplete"`
}

// BulkReviewStatusRequest applies one status to many applications.
type BulkReviewStatusRequest struct {
	ApplicationIDs []string     `json:"application_ids" validate:"required,min=1,max=500,dive,uuid"`
	Status         ReviewStatus `json:"status" validate:"required,oneof=pending approved rejected incomplete"`
}

// StatusCount is one bucket of a grouped count.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Total  int    `db:"total" json:"total"`
}

// AdmissionSummary aggregates counts for the staff dashboard.
type AdmissionSummary struct {
	Applications       map[string]int `json:"applications"`
	SubmittedCount     int            `json:"submitted_count"`
	Payments           map[string]int `json:"payments"`
	ReferralCodesUsed  int            `json:"referral_codes_used"`
	ReferralCodesAvail int            `json:"referral_codes_available"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// DownloadLink is a signed, expiring link to one stored file.
type DownloadLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
