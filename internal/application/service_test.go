package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/jobportal/internal/backend"
	"github.com/hitoshi/jobportal/internal/model"
)

type mockAPI struct {
	listFn  func(ctx context.Context, token string, userID model.ID) ([]model.Application, error)
	applyFn func(ctx context.Context, token string, req model.ApplyRequest) (model.ApplyResult, error)
}

func (m *mockAPI) ListApplications(ctx context.Context, token string, userID model.ID) ([]model.Application, error) {
	if m.listFn != nil {
		return m.listFn(ctx, token, userID)
	}
	return nil, nil
}

func (m *mockAPI) Apply(ctx context.Context, token string, req model.ApplyRequest) (model.ApplyResult, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, token, req)
	}
	return model.ApplyResult{Success: true}, nil
}

type fixedSession model.Session

func (f fixedSession) Session() model.Session { return model.Session(f) }

type recordingMetrics struct {
	results []string
}

func (r *recordingMetrics) RecordBackendStatus(string, int)            {}
func (r *recordingMetrics) RecordBackendFailure(string, string)        {}
func (r *recordingMetrics) RecordBackendLatency(string, time.Duration) {}
func (r *recordingMetrics) RecordSessionEvent(string, string)          {}
func (r *recordingMetrics) RecordSnapshotWrite(bool)                   {}
func (r *recordingMetrics) RecordApplication(result string) {
	r.results = append(r.results, result)
}

var alice = fixedSession{
	Role:      model.RoleJobSeeker,
	Token:     "tok",
	JobSeeker: &model.JobSeeker{ID: "7", FullName: "Alice", Role: "jobseeker"},
}

func newService(api API, sess SessionSource) (*Service, *recordingMetrics) {
	m := &recordingMetrics{}
	return NewService(api, sess, slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), m), m
}

func TestApply_Success(t *testing.T) {
	var got model.ApplyRequest
	api := &mockAPI{
		applyFn: func(_ context.Context, token string, req model.ApplyRequest) (model.ApplyResult, error) {
			if token != "tok" {
				t.Errorf("token = %q, want tok", token)
			}
			got = req
			return model.ApplyResult{Success: true}, nil
		},
	}
	svc, m := newService(api, alice)

	res, err := svc.Apply(context.Background(), "42")
	if err != nil {
		t.Fatalf("Apply がエラーを返した: %v", err)
	}
	if !res.Applied || res.Notice != model.Success("Application submitted successfully!") {
		t.Errorf("result = %+v", res)
	}
	want := model.ApplyRequest{JobSeekerID: "7", JobID: "42", Name: "Alice"}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
	if len(m.results) != 1 || m.results[0] != "submitted" {
		t.Errorf("metrics = %v", m.results)
	}
}

func TestApply_AlreadyApplied(t *testing.T) {
	api := &mockAPI{
		applyFn: func(context.Context, string, model.ApplyRequest) (model.ApplyResult, error) {
			return model.ApplyResult{}, fmt.Errorf("%w: %w", backend.ErrAlreadyApplied,
				&backend.HTTPError{Status: 409, Message: "duplicate"})
		},
	}
	svc, _ := newService(api, alice)

	res, err := svc.Apply(context.Background(), "42")
	if err != nil {
		t.Fatalf("応募済みはエラーにしない: %v", err)
	}
	if res.Applied {
		t.Error("Applied = true, want false")
	}
	if res.Notice != model.Info("You've already applied for this job.") {
		t.Errorf("notice = %+v", res.Notice)
	}
}

func TestApply_BackendDeclines(t *testing.T) {
	api := &mockAPI{
		applyFn: func(context.Context, string, model.ApplyRequest) (model.ApplyResult, error) {
			return model.ApplyResult{Success: false, Message: "Job is closed"}, nil
		},
	}
	svc, m := newService(api, alice)

	res, _ := svc.Apply(context.Background(), "42")

	if res.Applied || res.Notice != model.Info("Job is closed") {
		t.Errorf("result = %+v", res)
	}
	if m.results[0] != "rejected" {
		t.Errorf("metrics = %v", m.results)
	}
}

func TestApply_Failure(t *testing.T) {
	api := &mockAPI{
		applyFn: func(context.Context, string, model.ApplyRequest) (model.ApplyResult, error) {
			return model.ApplyResult{}, backend.ErrUnavailable
		},
	}
	svc, _ := newService(api, alice)

	res, err := svc.Apply(context.Background(), "42")

	if !errors.Is(err, backend.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if res.Notice != model.Failure("Error applying for job.") {
		t.Errorf("notice = %+v", res.Notice)
	}
}

func TestApply_RequiresJobSeeker(t *testing.T) {
	api := &mockAPI{
		applyFn: func(context.Context, string, model.ApplyRequest) (model.ApplyResult, error) {
			t.Error("未ログイン時にAPIを呼んではならない")
			return model.ApplyResult{}, nil
		},
	}
	employer := fixedSession{Role: model.RoleEmployer, Token: "t", Employer: &model.Employer{ID: "e1"}}
	svc, _ := newService(api, employer)

	_, err := svc.Apply(context.Background(), "42")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthorized {
		t.Errorf("UNAUTHORIZED を期待したが %v", err)
	}
}

func TestList(t *testing.T) {
	api := &mockAPI{
		listFn: func(_ context.Context, _ string, userID model.ID) ([]model.Application, error) {
			if userID != "7" {
				t.Errorf("userID = %q, want 7", userID)
			}
			return []model.Application{{ID: "1", Title: "Go Engineer", Status: "pending"}}, nil
		},
	}
	svc, _ := newService(api, alice)

	apps, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List がエラーを返した: %v", err)
	}
	if len(apps) != 1 || apps[0].Title != "Go Engineer" {
		t.Errorf("apps = %+v", apps)
	}
}

func TestList_EmptyIsNotNil(t *testing.T) {
	svc, _ := newService(&mockAPI{}, alice)

	apps, err := svc.List(context.Background())
	if err != nil || apps == nil {
		t.Errorf("apps = %v, err = %v, want 空スライス", apps, err)
	}
}
