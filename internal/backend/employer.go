package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobportal/internal/metrics"
	"github.com/hitoshi/jobportal/internal/model"
)

// EmployerClient は採用企業APIのクライアント。
type EmployerClient struct {
	client
}

// NewEmployerClient はEmployerClientの新しいインスタンスを生成する。
func NewEmployerClient(baseURL string, httpClient *http.Client, logger *slog.Logger, m metrics.MetricsCollector) *EmployerClient {
	return &EmployerClient{client: newClient(string(model.RoleEmployer), baseURL, httpClient, logger, m)}
}

// Login はメールアドレスとパスワードでログインし、トークンと担当者情報を返す。
func (c *EmployerClient) Login(ctx context.Context, email, password string) (string, model.Employer, error) {
	var resp struct {
		Token    string          `json:"token"`
		Employer *model.Employer `json:"employer"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, http.MethodPost, "/login", "", body, &resp); err != nil {
		return "", model.Employer{}, err
	}
	if resp.Token == "" || resp.Employer == nil {
		return "", model.Employer{}, fmt.Errorf("%w: login response without token or employer", ErrInvalidResponse)
	}
	return resp.Token, *resp.Employer, nil
}

// Logout はサーバー側のセッションを終了する。
func (c *EmployerClient) Logout(ctx context.Context, token string) error {
	return c.call(ctx, http.MethodPost, "/logout", token, nil, nil)
}

// Register は採用企業アカウントを登録し、バックエンドのメッセージを返す。
func (c *EmployerClient) Register(ctx context.Context, reg model.EmployerRegistration) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.call(ctx, http.MethodPost, "/register", "", reg, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ListAllJobs は掲載中のすべての求人を取得する。
func (c *EmployerClient) ListAllJobs(ctx context.Context) ([]model.Job, error) {
	var jobs []model.Job
	if err := c.call(ctx, http.MethodGet, "/jobs", "", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListJobs は採用企業が掲載した求人一覧を取得する。
func (c *EmployerClient) ListJobs(ctx context.Context, token string, employerID model.ID) ([]model.Job, error) {
	var jobs []model.Job
	if err := c.call(ctx, http.MethodGet, pathf("/jobs/%s", employerID), token, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob は求人の詳細を取得する。
// バックエンドは単一オブジェクトまたは配列のどちらかを返すため、配列の場合はIDで探す。
func (c *EmployerClient) GetJob(ctx context.Context, id model.ID) (model.Job, error) {
	var raw jobOrList
	if err := c.call(ctx, http.MethodGet, pathf("/jobs/%s", id), "", nil, &raw); err != nil {
		return model.Job{}, err
	}
	job, ok := raw.find(id)
	if !ok {
		return model.Job{}, &HTTPError{Backend: c.name, Status: http.StatusNotFound, Message: "Job not found"}
	}
	return job, nil
}

// CreateJob は求人を掲載する。
func (c *EmployerClient) CreateJob(ctx context.Context, token string, input model.JobInput) (model.Job, error) {
	var job model.Job
	if err := c.call(ctx, http.MethodPost, "/jobs", token, input, &job); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

// Analytics はダッシュボードのグラフ用集計値を取得する。
func (c *EmployerClient) Analytics(ctx context.Context, token string) (model.Analytics, error) {
	var a model.Analytics
	if err := c.call(ctx, http.MethodGet, "/analytics", token, nil, &a); err != nil {
		return model.Analytics{}, err
	}
	return a, nil
}
