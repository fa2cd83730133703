// Package application は求職者の応募操作を提供する。
package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/jobportal/internal/backend"
	"github.com/hitoshi/jobportal/internal/metrics"
	"github.com/hitoshi/jobportal/internal/model"
)

const (
	appliedMessage     = "Application submitted successfully!"
	applyFailedMessage = "Error applying for job."
)

// API は応募関連の求職者APIエンドポイント。
type API interface {
	ListApplications(ctx context.Context, token string, userID model.ID) ([]model.Application, error)
	Apply(ctx context.Context, token string, req model.ApplyRequest) (model.ApplyResult, error)
}

// SessionSource はログイン中のセッションを返す。
type SessionSource interface {
	Session() model.Session
}

// Result は応募の結果。
type Result struct {
	Applied bool         `json:"applied"`
	Notice  model.Notice `json:"notice"`
}

// Service は応募と応募履歴の取得を行う。
type Service struct {
	api     API
	session SessionSource
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(api API, session SessionSource, logger *slog.Logger, m metrics.MetricsCollector) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{api: api, session: session, logger: logger, metrics: m}
}

func (s *Service) jobSeeker() (model.Session, error) {
	sess := s.session.Session()
	if sess.Role != model.RoleJobSeeker || sess.JobSeeker == nil || sess.Token == "" {
		return sess, model.NewUnauthorizedError()
	}
	return sess, nil
}

// Apply は求人jobIDに応募する。
// 応募済み（409）の場合はエラーにせず情報通知を返す。
// バックエンドがsuccess=falseを返した場合はそのメッセージを情報通知にする。
func (s *Service) Apply(ctx context.Context, jobID model.ID) (Result, error) {
	sess, err := s.jobSeeker()
	if err != nil {
		return Result{Notice: model.Failure(model.NewUnauthorizedError().Message)}, err
	}

	res, err := s.api.Apply(ctx, sess.Token, model.ApplyRequest{
		JobSeekerID: sess.JobSeeker.ID,
		JobID:       jobID,
		Name:        sess.JobSeeker.FullName,
	})
	if err != nil {
		if errors.Is(err, backend.ErrAlreadyApplied) {
			s.metrics.RecordApplication("duplicate")
			return Result{Notice: model.Info(model.NewAlreadyAppliedError().Message)}, nil
		}
		s.metrics.RecordApplication("error")
		s.logger.Error("failed to apply for job",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
		return Result{Notice: model.Failure(applyFailedMessage)}, err
	}

	if !res.Success {
		s.metrics.RecordApplication("rejected")
		return Result{Notice: model.Info(res.Message)}, nil
	}
	s.metrics.RecordApplication("submitted")
	s.logger.Info("application submitted",
		slog.String("job_id", jobID.String()),
		slog.String("jobseeker_id", sess.JobSeeker.ID.String()),
	)
	return Result{Applied: true, Notice: model.Success(appliedMessage)}, nil
}

// List はログイン中の求職者の応募履歴を返す。
func (s *Service) List(ctx context.Context) ([]model.Application, error) {
	sess, err := s.jobSeeker()
	if err != nil {
		return nil, err
	}
	apps, err := s.api.ListApplications(ctx, sess.Token, sess.JobSeeker.ID)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []model.Application{}
	}
	return apps, nil
}
