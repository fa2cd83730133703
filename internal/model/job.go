package model

import "strings"

// Job は採用企業が掲載する求人。
// requirementsとbenefitsはバックエンド上では改行区切りの文字列として保持される。
type Job struct {
	ID                  ID     `json:"id"`
	EmployerID          ID     `json:"employer_id"`
	Title               string `json:"title"`
	Company             string `json:"company"`
	Location            string `json:"location"`
	EmploymentType      string `json:"employment_type"`
	ExperienceLevel     string `json:"experience_level"`
	Salary              string `json:"salary"`
	Description         string `json:"description"`
	Requirements        string `json:"requirements"`
	Benefits            string `json:"benefits"`
	ApplicationDeadline string `json:"application_deadline"`
	ContactEmail        string `json:"contact_email"`
	CreatedAt           string `json:"created_at,omitempty"`
	Applicants          int    `json:"applicants,omitempty"`
}

// RequirementList は改行区切りのrequirementsを空行を除いて分割する。
func (j Job) RequirementList() []string {
	return splitLines(j.Requirements)
}

// BenefitList は改行区切りのbenefitsを空行を除いて分割する。
func (j Job) BenefitList() []string {
	return splitLines(j.Benefits)
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// JobInput は求人掲載フォームの入力。
type JobInput struct {
	Title               string `json:"title"`
	Company             string `json:"company"`
	Location            string `json:"location"`
	EmploymentType      string `json:"employment_type"`
	ExperienceLevel     string `json:"experience_level"`
	Salary              string `json:"salary"`
	Description         string `json:"description"`
	Requirements        string `json:"requirements"`
	Benefits            string `json:"benefits"`
	ApplicationDeadline string `json:"application_deadline"`
	ContactEmail        string `json:"contact_email"`
	EmployerID          ID     `json:"employer_id,omitempty"`
}

// EmploymentTypes は掲載フォームで選択できる雇用形態。
var EmploymentTypes = []string{"Full-time", "Part-time", "Contract", "Temporary", "Internship", "Remote"}

// ExperienceLevels は掲載フォームで選択できる経験レベル。
var ExperienceLevels = []string{"Entry-level", "Mid-level", "Senior", "Manager", "Director", "Executive"}

// Application は求職者の応募。
type Application struct {
	ID              ID     `json:"id"`
	JobID           ID     `json:"job_id,omitempty"`
	Company         string `json:"company"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	ApplicationDate string `json:"application_date"`
}

// ApplyRequest は応募APIに送信する本文。
type ApplyRequest struct {
	JobSeekerID ID     `json:"jobseeker_id"`
	JobID       ID     `json:"job_id"`
	Name        string `json:"name"`
}

// ApplyResult は応募APIの応答。
type ApplyResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MonthlyJobs は月別の求人掲載数。
type MonthlyJobs struct {
	Month string `json:"month"`
	Jobs  int    `json:"jobs"`
}

// MonthlyApplications は月別の応募数。
type MonthlyApplications struct {
	Month        string `json:"month"`
	Applications int    `json:"applications"`
}

// JobPerformance は求人ごとの成果指標。
type JobPerformance struct {
	Title          string `json:"title"`
	Views          int    `json:"views"`
	Applications   int    `json:"applications"`
	ConversionRate string `json:"conversion_rate"`
	TimeToFill     string `json:"time_to_fill"`
	CostPerHire    string `json:"cost_per_hire"`
}

// Analytics は採用企業ダッシュボードのグラフ用集計値。
type Analytics struct {
	JobsPosted     []MonthlyJobs         `json:"jobsPostedData"`
	Applications   []MonthlyApplications `json:"applicationsData"`
	JobPerformance []JobPerformance      `json:"jobPerformanceData"`
}
