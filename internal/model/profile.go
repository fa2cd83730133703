package model

// Profile は求職者プロフィールの射影。
// ログイン後の初回取得までは既定値（IDはnull、文字列は空）のまま保持される。
type Profile struct {
	ID             ID     `json:"id"`
	UserID         ID     `json:"user_id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	Location       string `json:"location"`
	InterestedArea string `json:"interested_area"`
	About          string `json:"about"`
	DateOfBirth    string `json:"date_of_birth"`
	ResumeLink     string `json:"resume_link"`
}

// DefaultProfile はプロフィールの既定値を返す。
func DefaultProfile() Profile {
	return Profile{}
}

// IsEmpty はプロフィールが未作成（IDが未設定）かを返す。
func (p Profile) IsEmpty() bool {
	return p.ID.IsZero()
}

// ProfileFields はプロフィール作成・更新時に送信する項目。
type ProfileFields struct {
	UserID         ID     `json:"user_id,omitempty"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	Location       string `json:"location"`
	InterestedArea string `json:"interested_area"`
	About          string `json:"about"`
	DateOfBirth    string `json:"date_of_birth"`
	ResumeLink     string `json:"resume_link"`
}

// Fields はプロフィールから送信用の項目を取り出す。
func (p Profile) Fields() ProfileFields {
	return ProfileFields{
		UserID:         p.UserID,
		FullName:       p.FullName,
		Email:          p.Email,
		PhoneNumber:    p.PhoneNumber,
		Location:       p.Location,
		InterestedArea: p.InterestedArea,
		About:          p.About,
		DateOfBirth:    p.DateOfBirth,
		ResumeLink:     p.ResumeLink,
	}
}

// Education は学歴エントリ。
type Education struct {
	ID                ID     `json:"id,omitempty"`
	ProfileID         ID     `json:"jobseeker_profile_id"`
	InstitutionName   string `json:"institution_name"`
	Degree            string `json:"degree,omitempty"`
	FieldOfStudy      string `json:"field_of_study,omitempty"`
	StartYear         int    `json:"start_year,omitempty"`
	EndYear           int    `json:"end_year,omitempty"`
	GradeOrPercentage string `json:"grade_or_percentage,omitempty"`
}

// Experience は職歴エントリ。
type Experience struct {
	ID               ID     `json:"id,omitempty"`
	ProfileID        ID     `json:"jobseeker_profile_id,omitempty"`
	CompanyName      string `json:"company_name"`
	Position         string `json:"position"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	Description      string `json:"description"`
	CurrentlyWorking bool   `json:"currently_working"`
}

// Proficiency はスキルの習熟度。
type Proficiency string

const (
	ProficiencyBeginner     Proficiency = "Beginner"
	ProficiencyIntermediate Proficiency = "Intermediate"
	ProficiencyAdvanced     Proficiency = "Advanced"
	ProficiencyExpert       Proficiency = "Expert"
)

// Skill はスキルエントリ。
type Skill struct {
	ID          ID          `json:"id,omitempty"`
	ProfileID   ID          `json:"jobseeker_profile_id"`
	SkillName   string      `json:"skill_name"`
	Proficiency Proficiency `json:"proficiency"`
}

// Completion はプロフィール充足度の元データ。
type Completion struct {
	BasicInfo  *Profile     `json:"basicInfo"`
	Education  []Education  `json:"education"`
	Experience []Experience `json:"experience"`
	Skills     []Skill      `json:"skills"`
	Portfolio  string       `json:"portfolio"`
}

// CompletionReport はプロフィール充足度。
// Percentは基本情報・学歴・職歴・スキル・ポートフォリオの5区分のうち埋まっている割合（切り捨て）。
type CompletionReport struct {
	Percent    int  `json:"percent"`
	BasicInfo  bool `json:"basic_info"`
	Education  bool `json:"education"`
	Experience bool `json:"experience"`
	Resume     bool `json:"resume"`
	Portfolio  bool `json:"portfolio"`
	Skills     bool `json:"skills"`
}

// Report は充足度を計算する。
func (c Completion) Report() CompletionReport {
	sections := []bool{
		c.BasicInfo != nil,
		len(c.Education) > 0,
		len(c.Experience) > 0,
		len(c.Skills) > 0,
		c.Portfolio != "",
	}
	done := 0
	for _, ok := range sections {
		if ok {
			done++
		}
	}
	r := CompletionReport{
		Percent:    done * 100 / len(sections),
		Education:  sections[1],
		Experience: sections[2],
		Skills:     sections[3],
		Portfolio:  sections[4],
	}
	if c.BasicInfo != nil {
		r.BasicInfo = c.BasicInfo.FullName != ""
		r.Resume = c.BasicInfo.ResumeLink != ""
	}
	return r
}

// Resume は採用企業向けに表示する求職者の履歴書。
// 項目名はプロフィール編集用のエントリとは異なる。
type Resume struct {
	PersonalInfo ResumePersonalInfo `json:"personalInfo"`
	Education    []ResumeEducation  `json:"education"`
	Experience   []ResumeExperience `json:"experience"`
	Skills       []ResumeSkill      `json:"skills"`
	About        string             `json:"about"`
	ResumeLink   string             `json:"resume_link"`
}

// ResumePersonalInfo は履歴書の連絡先情報。
type ResumePersonalInfo struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	LinkedIn    string `json:"linked_in,omitempty"`
	Portfolio   string `json:"portfolio,omitempty"`
}

// ResumeEducation は履歴書の学歴行。年は数値と文字列のどちらでも届く。
type ResumeEducation struct {
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"field_of_study"`
	Institution  string `json:"institution"`
	StartYear    Text   `json:"start_year"`
	EndYear      Text   `json:"end_year"`
}

// ResumeExperience は履歴書の職歴行。
type ResumeExperience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
}

// ResumeSkill は履歴書のスキル行。
type ResumeSkill struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency"`
}
