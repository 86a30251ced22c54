package models

// Section names accepted by the save endpoint.
const (
	SectionPersonal    = "personal"
	SectionGuardian    = "guardian"
	SectionSchools     = "schools"
	SectionExams       = "exams"
	SectionCourses     = "courses"
	SectionDeclaration = "declaration"
	SectionDocuments   = "documents"
)

const (
	MaxSchoolsAttended = 3
	MaxExamSittings    = 2
)

// PersonalSection is section A of the form. The passport photo is uploaded separately.
type PersonalSection struct {
	FirstName     string `json:"first_name" validate:"required,max=100"`
	Surname       string `json:"surname" validate:"required,max=100"`
	OtherName     string `json:"other_name" validate:"max=100"`
	DateOfBirth   string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Phone         string `json:"phone" validate:"required,phone"`
	Email         string `json:"email" validate:"required,email"`
	Address       string `json:"address" validate:"required,max=500"`
	LGA           string `json:"lga" validate:"required,max=100"`
	StateOfOrigin string `json:"state_of_origin" validate:"required,max=100"`
}

// GuardianSection holds next-of-kin details.
type GuardianSection struct {
	GuardianName         string `json:"guardian_name" validate:"required,max=200"`
	GuardianPhone        string `json:"guardian_phone" validate:"required,phone"`
	GuardianAddress      string `json:"guardian_address" validate:"required,max=500"`
	GuardianRelationship string `json:"guardian_relationship" validate:"required,max=50"`
}

// SchoolInput is one school in the schools section.
type SchoolInput struct {
	SchoolName string `json:"school_name" validate:"required,max=200"`
	FromYear   int    `json:"from_year" validate:"required,min=1950,max=2100"`
	ToYear     int    `json:"to_year" validate:"required,min=1950,max=2100,gtefield=FromYear"`
}

// SchoolsSection replaces every school row of the application.
type SchoolsSection struct {
	Schools []SchoolInput `json:"schools" validate:"max=3,dive"`
}

// ExamResultInput is one sitting in the exams section.
type ExamResultInput struct {
	SittingNumber      int    `json:"sitting_number" validate:"required,oneof=1 2"`
	ExamType           string `json:"exam_type" validate:"required,oneof=waec neco nabteb nbais"`
	ExamNumber         string `json:"exam_number" validate:"required,max=50"`
	RegistrationNumber string `json:"registration_number" validate:"max=50"`
	CentreNumber       string `json:"centre_number" validate:"max=50"`
	CentreName         string `json:"centre_name" validate:"max=200"`
	ExamYear           int    `json:"exam_year" validate:"required,min=1980,max=2100"`
	EnglishGrade       string `json:"english_grade" validate:"required,grade"`
	MathematicsGrade   string `json:"mathematics_grade" validate:"required,grade"`
	BiologyGrade       string `json:"biology_grade" validate:"omitempty,grade"`
	ChemistryGrade     string `json:"chemistry_grade" validate:"omitempty,grade"`
	PhysicsGrade       string `json:"physics_grade" validate:"omitempty,grade"`
	Subject1           string `json:"subject_1" validate:"max=100"`
	Subject1Grade      string `json:"subject_1_grade" validate:"required_with=Subject1,omitempty,grade"`
	Subject2           string `json:"subject_2" validate:"max=100"`
	Subject2Grade      string `json:"subject_2_grade" validate:"required_with=Subject2,omitempty,grade"`
	Subject3           string `json:"subject_3" validate:"max=100"`
	Subject3Grade      string `json:"subject_3_grade" validate:"required_with=Subject3,omitempty,grade"`
	Subject4           string `json:"subject_4" validate:"max=100"`
	Subject4Grade      string `json:"subject_4_grade" validate:"required_with=Subject4,omitempty,grade"`
}

// ExamsSection replaces every exam sitting of the application.
type ExamsSection struct {
	Results []ExamResultInput `json:"results" validate:"max=2,dive"`
}

// CoursesSection picks two distinct programmes.
type CoursesSection struct {
	FirstChoice  string `json:"first_choice" validate:"required,course"`
	SecondChoice string `json:"second_choice" validate:"required,course"`
}

// DeclarationSection is section E of the form.
type DeclarationSection struct {
	DeclarationText string `json:"declaration_text" validate:"max=5000"`
}

// Grades accepted for O-level subjects.
var Grades = []string{"A1", "B2", "B3", "C4", "C5", "C6", "D7", "E8", "F9", "awaiting"}

// Course is a programme offered for admission.
type Course struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Courses lists the programmes in catalogue order.
var Courses = []Course{
	{Code: "diploma_community_health", Name: "Diploma in Community Health (CHEW)"},
	{Code: "certificate_community_health", Name: "Certificate in Community Health (JCHEW)"},
	{Code: "diploma_health_info", Name: "Diploma in Health Information Management"},
	{Code: "diploma_environmental_health", Name: "Diploma in Environmental Health"},
	{Code: "diploma_xray", Name: "Diploma in X-Ray Technology"},
	{Code: "diploma_nutrition", Name: "Diploma in Nutrition and Dietetics"},
	{Code: "retraining_community_health", Name: "Retraining in Community Health"},
}

// CourseName resolves a course code to its display name, or returns the code when unknown.
func CourseName(code string) string {
	for _, c := range Courses {
		if c.Code == code {
			return c.Name
		}
	}
	return code
}

// IsCourse reports whether code is in the catalogue.
func IsCourse(code string) bool {
	for _, c := range Courses {
		if c.Code == code {
			return true
		}
	}
	return false
}

// IsGrade reports whether g is an accepted O-level grade.
func IsGrade(g string) bool {
	for _, known := range Grades {
		if g == known {
			return true
		}
	}
	return false
}
