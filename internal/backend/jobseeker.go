package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobportal/internal/metrics"
	"github.com/hitoshi/jobportal/internal/model"
)

// JobSeekerClient は求職者APIのクライアント。
type JobSeekerClient struct {
	client
}

// NewJobSeekerClient はJobSeekerClientの新しいインスタンスを生成する。
func NewJobSeekerClient(baseURL string, httpClient *http.Client, logger *slog.Logger, m metrics.MetricsCollector) *JobSeekerClient {
	return &JobSeekerClient{client: newClient(string(model.RoleJobSeeker), baseURL, httpClient, logger, m)}
}

// Login はメールアドレスとパスワードでログインし、トークンと求職者情報を返す。
func (c *JobSeekerClient) Login(ctx context.Context, email, password string) (string, model.JobSeeker, error) {
	var resp struct {
		Token string           `json:"token"`
		User  *model.JobSeeker `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, http.MethodPost, "/login", "", body, &resp); err != nil {
		return "", model.JobSeeker{}, err
	}
	if resp.Token == "" || resp.User == nil {
		return "", model.JobSeeker{}, fmt.Errorf("%w: login response without token or user", ErrInvalidResponse)
	}
	return resp.Token, *resp.User, nil
}

// Logout はサーバー側のセッションを終了する。
func (c *JobSeekerClient) Logout(ctx context.Context, token string) error {
	return c.call(ctx, http.MethodPost, "/logout", token, nil, nil)
}

// Register は求職者アカウントを登録し、バックエンドのメッセージを返す。
func (c *JobSeekerClient) Register(ctx context.Context, reg model.JobSeekerRegistration) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.call(ctx, http.MethodPost, "/register", "", reg, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// profileEnvelope はプロフィールAPIの応答形式 {data: {...}}。
// 欠けた項目は既定値のまま残る。
type profileEnvelope struct {
	Data *model.Profile `json:"data"`
}

func (e profileEnvelope) profile() model.Profile {
	if e.Data == nil {
		return model.DefaultProfile()
	}
	return *e.Data
}

// GetProfile はユーザーIDに対応するプロフィールを取得する。
// 未作成の場合はIDが空のプロフィールを返す。
func (c *JobSeekerClient) GetProfile(ctx context.Context, token string, userID model.ID) (model.Profile, error) {
	env := profileEnvelope{Data: ptr(model.DefaultProfile())}
	if err := c.call(ctx, http.MethodGet, pathf("/profile/%s", userID), token, nil, &env); err != nil {
		return model.DefaultProfile(), err
	}
	return env.profile(), nil
}

// CreateProfile はプロフィールを作成する。
func (c *JobSeekerClient) CreateProfile(ctx context.Context, token string, fields model.ProfileFields) (model.Profile, error) {
	env := profileEnvelope{Data: ptr(model.DefaultProfile())}
	if err := c.call(ctx, http.MethodPost, "/profile", token, fields, &env); err != nil {
		return model.DefaultProfile(), err
	}
	return env.profile(), nil
}

// UpdateProfile はユーザーIDに対応するプロフィールを更新する。
func (c *JobSeekerClient) UpdateProfile(ctx context.Context, token string, userID model.ID, fields model.ProfileFields) error {
	return c.call(ctx, http.MethodPut, pathf("/profile/%s", userID), token, fields, nil)
}

// DeleteProfile はユーザーIDに対応するプロフィールを削除する。
func (c *JobSeekerClient) DeleteProfile(ctx context.Context, token string, userID model.ID) error {
	return c.call(ctx, http.MethodDelete, pathf("/profile/%s", userID), token, nil, nil)
}

// ListApplications は求職者の応募一覧を取得する。
func (c *JobSeekerClient) ListApplications(ctx context.Context, token string, userID model.ID) ([]model.Application, error) {
	var resp struct {
		Applications []model.Application `json:"applications"`
	}
	if err := c.call(ctx, http.MethodGet, pathf("/applications/%s", userID), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Applications, nil
}

// ListJobs は求職者向けのおすすめ求人を取得する。
// GET /jobseeker/jobs/{userId}。配列と{"jobs":[...]}、{"data":[...]}のいずれも受け付ける。
func (c *JobSeekerClient) ListJobs(ctx context.Context, token string, userID model.ID) ([]model.Job, error) {
	var resp jobList
	if err := c.call(ctx, http.MethodGet, pathf("/jobseeker/jobs/%s", userID), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.jobs, nil
}

// Apply は求人に応募する。
// 応募済み（409）の場合はErrAlreadyAppliedを返す。
func (c *JobSeekerClient) Apply(ctx context.Context, token string, req model.ApplyRequest) (model.ApplyResult, error) {
	var result model.ApplyResult
	err := c.call(ctx, http.MethodPost, "/applications/apply", token, req, &result)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Class() == StatusClassConflict {
			return model.ApplyResult{}, fmt.Errorf("%w: %w", ErrAlreadyApplied, err)
		}
		return model.ApplyResult{}, err
	}
	return result, nil
}

// ListEducation はプロフィールの学歴一覧を取得する。
func (c *JobSeekerClient) ListEducation(ctx context.Context, token string, profileID model.ID) ([]model.Education, error) {
	var resp struct {
		Education []model.Education `json:"education"`
	}
	if err := c.call(ctx, http.MethodGet, pathf("/education/%s", profileID), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Education, nil
}

// AddEducation は学歴を追加する。
func (c *JobSeekerClient) AddEducation(ctx context.Context, token string, edu model.Education) error {
	return c.call(ctx, http.MethodPost, "/education", token, edu, nil)
}

// DeleteEducation は学歴を削除する。
func (c *JobSeekerClient) DeleteEducation(ctx context.Context, token string, id model.ID) error {
	return c.call(ctx, http.MethodDelete, pathf("/education/%s", id), token, nil, nil)
}

// ListExperience はプロフィールの職歴一覧を取得する。
func (c *JobSeekerClient) ListExperience(ctx context.Context, token string, profileID model.ID) ([]model.Experience, error) {
	var resp struct {
		Data []model.Experience `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, pathf("/experience/%s", profileID), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// AddExperience は職歴を追加する。
func (c *JobSeekerClient) AddExperience(ctx context.Context, token string, profileID model.ID, exp model.Experience) error {
	return c.call(ctx, http.MethodPost, pathf("/experience/%s", profileID), token, exp, nil)
}

// DeleteExperience は職歴を削除する。
func (c *JobSeekerClient) DeleteExperience(ctx context.Context, token string, id model.ID) error {
	return c.call(ctx, http.MethodDelete, pathf("/experience/delete/%s", id), token, nil, nil)
}

// ListSkills はプロフィールのスキル一覧を取得する。
func (c *JobSeekerClient) ListSkills(ctx context.Context, token string, profileID model.ID) ([]model.Skill, error) {
	var resp struct {
		Data []model.Skill `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, pathf("/skills/%s", profileID), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// AddSkill はスキルを追加する。
func (c *JobSeekerClient) AddSkill(ctx context.Context, token string, skill model.Skill) error {
	return c.call(ctx, http.MethodPost, "/skills", token, skill, nil)
}

// DeleteSkill はスキルを削除する。
func (c *JobSeekerClient) DeleteSkill(ctx context.Context, token string, id model.ID) error {
	return c.call(ctx, http.MethodDelete, pathf("/skills/%s", id), token, nil, nil)
}

// GetCompletion はプロフィール充足度の元データを取得する。
func (c *JobSeekerClient) GetCompletion(ctx context.Context, token string, profileID model.ID) (model.Completion, error) {
	var resp struct {
		Data *model.Completion `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, pathf("/completion/%s", profileID), token, nil, &resp); err != nil {
		return model.Completion{}, err
	}
	if resp.Data == nil {
		return model.Completion{}, fmt.Errorf("%w: completion response without data", ErrInvalidResponse)
	}
	return *resp.Data, nil
}

// GetResume は採用企業向けの履歴書を取得する。
func (c *JobSeekerClient) GetResume(ctx context.Context, token string, profileID, userID model.ID) (model.Resume, error) {
	var resp struct {
		Data *struct {
			Profile *model.Resume `json:"profile"`
		} `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, pathf("/resume/%s/%s", profileID, userID), token, nil, &resp); err != nil {
		return model.Resume{}, err
	}
	if resp.Data == nil || resp.Data.Profile == nil {
		return model.Resume{}, fmt.Errorf("%w: resume response without profile", ErrInvalidResponse)
	}
	return *resp.Data.Profile, nil
}

func ptr[T any](v T) *T {
	return &v
}
