// Package job は求人の閲覧と、採用企業による求人掲載・集計の操作を提供する。
package job

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/hitoshi/jobportal/internal/backend"
	"github.com/hitoshi/jobportal/internal/model"
	"github.com/hitoshi/jobportal/internal/security"
)

// DefaultPageSize は一覧画面の1ページあたりの求人数。
const DefaultPageSize = 8

// MaxPageSize は1ページあたりの求人数の上限。
const MaxPageSize = 100

const postedMessage = "Job posted successfully!"

// API は求人関連の採用企業APIエンドポイント。
type API interface {
	ListAllJobs(ctx context.Context) ([]model.Job, error)
	ListJobs(ctx context.Context, token string, employerID model.ID) ([]model.Job, error)
	GetJob(ctx context.Context, id model.ID) (model.Job, error)
	CreateJob(ctx context.Context, token string, input model.JobInput) (model.Job, error)
	Analytics(ctx context.Context, token string) (model.Analytics, error)
}

// RecommendationAPI は求職者向けのおすすめ求人エンドポイント。
type RecommendationAPI interface {
	ListJobs(ctx context.Context, token string, userID model.ID) ([]model.Job, error)
}

// SessionSource はログイン中のセッションを返す。
type SessionSource interface {
	Session() model.Session
}

// Filter は求人一覧の絞り込み条件。
type Filter struct {
	Keyword  string // タイトル・会社名・説明の部分一致
	Location string // 勤務地の部分一致
	Type     string // 雇用形態の完全一致（大文字小文字は区別しない）
	Page     int    // 1始まり
	PageSize int
}

// Page は絞り込み後の求人一覧の1ページ分。
type Page struct {
	Jobs       []model.Job `json:"jobs"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// Service は求人の操作を提供する。
type Service struct {
	api      API
	seekers  RecommendationAPI
	session  SessionSource
	sanitize security.ContentSanitizerService
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(api API, seekers RecommendationAPI, session SessionSource, sanitize security.ContentSanitizerService, logger *slog.Logger) *Service {
	return &Service{api: api, seekers: seekers, session: session, sanitize: sanitize, logger: logger}
}

// Browse は全求人を取得し、条件で絞り込んでページ分割する。
func (s *Service) Browse(ctx context.Context, f Filter) (Page, error) {
	jobs, err := s.api.ListAllJobs(ctx)
	if err != nil {
		return Page{}, err
	}

	matched := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if f.matches(j) {
			matched = append(matched, s.clean(j))
		}
	}
	return paginate(matched, f.Page, f.PageSize), nil
}

func (f Filter) matches(j model.Job) bool {
	if kw := strings.ToLower(strings.TrimSpace(f.Keyword)); kw != "" {
		if !containsFold(j.Title, kw) && !containsFold(j.Company, kw) && !containsFold(j.Description, kw) {
			return false
		}
	}
	if loc := strings.ToLower(strings.TrimSpace(f.Location)); loc != "" && !containsFold(j.Location, loc) {
		return false
	}
	if t := strings.TrimSpace(f.Type); t != "" && !strings.EqualFold(j.EmploymentType, t) {
		return false
	}
	return true
}

func containsFold(s, lowerSub string) bool {
	return strings.Contains(strings.ToLower(s), lowerSub)
}

func paginate(jobs []model.Job, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)
	total := len(jobs)
	totalPages := (total + size - 1) / size
	if page < 1 {
		page = 1
	}
	// 範囲外のページは掛け算の前に弾く。
	start := total
	if page-1 < totalPages {
		start = (page - 1) * size
	}
	end := min(start+size, total)
	return Page{
		Jobs:       jobs[start:end],
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}
}

// Get は求人の詳細を返す。見つからない場合はJOB_NOT_FOUND。
func (s *Service) Get(ctx context.Context, id model.ID) (model.Job, error) {
	j, err := s.api.GetJob(ctx, id)
	if err != nil {
		if backend.IsNotFound(err) {
			return model.Job{}, model.NewJobNotFoundError(id.String())
		}
		return model.Job{}, err
	}
	return s.clean(j), nil
}

// Post は求人を掲載する。ログイン中の採用企業のIDを掲載者として設定する。
func (s *Service) Post(ctx context.Context, input model.JobInput) (model.Job, model.Notice, error) {
	sess, err := s.employer()
	if err != nil {
		return model.Job{}, model.Failure(model.NewUnauthorizedError().Message), err
	}
	if err := Validate(input); err != nil {
		return model.Job{}, model.Failure(err.Message), err
	}

	input.EmployerID = sess.Employer.ID
	input.Description = s.sanitize.Sanitize(input.Description)
	j, err := s.api.CreateJob(ctx, sess.Token, input)
	if err != nil {
		s.logger.Error("failed to post job",
			slog.String("employer_id", sess.Employer.ID.String()),
			slog.String("error", err.Error()),
		)
		return model.Job{}, model.Failure(backend.MessageOf(err, "Failed to post job. Please try again.")), err
	}
	return j, model.Success(postedMessage), nil
}

// Validate は求人掲載フォームの入力を検証する。
func Validate(in model.JobInput) *model.APIError {
	fields := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = "Job title is required"
	}
	if strings.TrimSpace(in.Company) == "" {
		fields["company"] = "Company name is required"
	}
	if strings.TrimSpace(in.Location) == "" {
		fields["location"] = "Location is required"
	}
	if strings.TrimSpace(in.Description) == "" {
		fields["description"] = "Job description is required"
	}
	if in.ApplicationDeadline == "" {
		fields["application_deadline"] = "Application deadline is required"
	}
	if in.EmploymentType != "" && !slices.Contains(model.EmploymentTypes, in.EmploymentType) {
		fields["employment_type"] = "Unknown employment type"
	}
	if in.ExperienceLevel != "" && !slices.Contains(model.ExperienceLevels, in.ExperienceLevel) {
		fields["experience_level"] = "Unknown experience level"
	}
	if len(fields) > 0 {
		return model.NewValidationError(fields)
	}
	return nil
}

// Dashboard はログイン中の採用企業が掲載した求人を返す。
func (s *Service) Dashboard(ctx context.Context) ([]model.Job, error) {
	sess, err := s.employer()
	if err != nil {
		return nil, err
	}
	jobs, err := s.api.ListJobs(ctx, sess.Token, sess.Employer.ID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, s.clean(j))
	}
	return out, nil
}

// Recommended はログイン中の求職者へのおすすめ求人を返す。
func (s *Service) Recommended(ctx context.Context) ([]model.Job, error) {
	sess := s.session.Session()
	if sess.Role != model.RoleJobSeeker || sess.JobSeeker == nil || sess.Token == "" {
		return nil, model.NewUnauthorizedError()
	}
	jobs, err := s.seekers.ListJobs(ctx, sess.Token, sess.JobSeeker.ID)
	if err != nil {
		s.logger.Error("failed to fetch recommended jobs",
			slog.String("user_id", sess.JobSeeker.ID.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, s.clean(j))
	}
	return out, nil
}

// Analytics は採用企業ダッシュボードの集計値を返す。
func (s *Service) Analytics(ctx context.Context) (model.Analytics, error) {
	sess, err := s.employer()
	if err != nil {
		return model.Analytics{}, err
	}
	return s.api.Analytics(ctx, sess.Token)
}

func (s *Service) employer() (model.Session, error) {
	sess := s.session.Session()
	if sess.Role != model.RoleEmployer || sess.Employer == nil || sess.Token == "" {
		return sess, model.NewUnauthorizedError()
	}
	return sess, nil
}

// clean は表示用にHTMLを無害化する。
func (s *Service) clean(j model.Job) model.Job {
	j.Description = s.sanitize.Sanitize(j.Description)
	j.Requirements = s.sanitize.Strip(j.Requirements)
	j.Benefits = s.sanitize.Strip(j.Benefits)
	return j
}
