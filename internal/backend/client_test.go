package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/jobportal/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newJobSeekerForTest(t *testing.T, h http.HandlerFunc) *JobSeekerClient {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	var buf bytes.Buffer
	return NewJobSeekerClient(server.URL, server.Client(), newTestLogger(&buf), nil)
}

func newEmployerForTest(t *testing.T, h http.HandlerFunc) *EmployerClient {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	var buf bytes.Buffer
	return NewEmployerClient(server.URL, server.Client(), newTestLogger(&buf), nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNewHTTPClient_HasCookieJar(t *testing.T) {
	c, err := NewHTTPClient(5 * time.Second)
	if err != nil {
		t.Fatalf("NewHTTPClient がエラーを返した: %v", err)
	}
	if c.Jar == nil {
		t.Error("CookieJarが設定されていない")
	}
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.Timeout)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   StatusClass
	}{
		{401, StatusClassAuth},
		{403, StatusClassAuth},
		{404, StatusClassNotFound},
		{410, StatusClassNotFound},
		{409, StatusClassConflict},
		{500, StatusClassServer},
		{503, StatusClassServer},
		{400, StatusClassOther},
		{422, StatusClassOther},
	}
	for _, tt := range tests {
		if got := ClassifyStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestJobSeekerClient_Login_Success(t *testing.T) {
	c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" {
			t.Errorf("リクエスト = %s %s, want POST /login", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@example.com" || body["password"] != "pw" {
			t.Errorf("body = %v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "tok",
			"user":  map[string]any{"id": 7, "full_name": "Alice", "email": "a@example.com", "role": "jobseeker"},
		})
	})

	token, user, err := c.Login(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if token != "tok" {
		t.Errorf("token = %q, want tok", token)
	}
	if user.ID != "7" || user.FullName != "Alice" {
		t.Errorf("user = %+v", user)
	}
}

func TestJobSeekerClient_Login_MissingUser(t *testing.T) {
	c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token": "tok"})
	})

	_, _, err := c.Login(context.Background(), "a@example.com", "pw")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("ErrInvalidResponse を期待したが %v", err)
	}
}

func TestJobSeekerClient_Login_BackendMessage(t *testing.T) {
	c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	})

	_, _, err := c.Login(context.Background(), "a@example.com", "bad")
	if err == nil {
		t.Fatal("エラーを期待した")
	}
	if got := MessageOf(err, "Login failed"); got != "Invalid credentials" {
		t.Errorf("MessageOf = %q, want Invalid credentials", got)
	}
	if !IsAuth(err) {
		t.Error("IsAuth = false, want true")
	}
}

func TestMessageOf_Fallback(t *testing.T) {
	if got := MessageOf(errors.New("boom"), "Login failed"); got != "Login failed" {
		t.Errorf("MessageOf = %q, want Login failed", got)
	}
	if got := MessageOf(&HTTPError{Status: 500}, "Login failed"); got != "Login failed" {
		t.Errorf("MessageOf = %q, want Login failed", got)
	}
}

func TestJobSeekerClient_Logout_SendsBearer(t *testing.T) {
	c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", got)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.Logout(context.Background(), "tok"); err != nil {
		t.Errorf("Logout がエラーを返した: %v", err)
	}
}

func TestClient_TransportFailure_ReturnsErrUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	c := NewJobSeekerClient(url, http.DefaultClient, newTestLogger(&buf), nil)

	err := c.Logout(context.Background(), "tok")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("ErrUnavailable を期待したが %v", err)
	}
}

func TestClient_CanceledContext(t *testing.T) {
	c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Logout(ctx, "tok")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("context.Canceled を期待したが %v", err)
	}
}

func TestClient_InvalidJSON_ReturnsErrInvalidResponse(t *testing.T) {
	c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	})

	_, err := c.ListApplications(context.Background(), "tok", "1")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("ErrInvalidResponse を期待したが %v", err)
	}
}

func TestJobSeekerClient_GetProfile_MergesOverDefaults(t *testing.T) {
	c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile/7" {
			t.Errorf("path = %s, want /profile/7", r.URL.Path)
		}
		io.WriteString(w, `{"data":{"id":3,"full_name":"Alice"}}`)
	})

	p, err := c.GetProfile(context.Background(), "tok", "7")
	if err != nil {
		t.Fatalf("GetProfile がエラーを返した: %v", err)
	}
	if p.ID != "3" || p.FullName != "Alice" || p.Email != "" {
		t.Errorf("profile = %+v", p)
	}
}

func TestJobSeekerClient_GetProfile_NullData(t *testing.T) {
	c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":null}`)
	})

	p, err := c.GetProfile(context.Background(), "tok", "7")
	if err != nil {
		t.Fatalf("GetProfile がエラーを返した: %v", err)
	}
	if !p.IsEmpty() {
		t.Errorf("空のプロフィールを期待したが %+v", p)
	}
}

func TestJobSeekerClient_Apply_Conflict(t *testing.T) {
	c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/applications/apply" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req model.ApplyRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.JobID != "5" || req.JobSeekerID != "7" || req.Name != "Alice" {
			t.Errorf("req = %+v", req)
		}
		writeJSON(w, http.StatusConflict, map[string]string{"message": "duplicate"})
	})

	_, err := c.Apply(context.Background(), "tok", model.ApplyRequest{JobSeekerID: "7", JobID: "5", Name: "Alice"})
	if !errors.Is(err, ErrAlreadyApplied) {
		t.Errorf("ErrAlreadyApplied を期待したが %v", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusConflict {
		t.Errorf("HTTPError(409) がラップされていない: %v", err)
	}
}

func TestJobSeekerClient_ProfileSectionPaths(t *testing.T) {
	var seen []string
	c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/education/3":
			io.WriteString(w, `{"education":[{"id":1,"institution_name":"MIT","start_year":2010}]}`)
		case "/experience/3":
			io.WriteString(w, `{"data":[{"id":2,"company_name":"Acme","position":"Dev"}]}`)
		case "/skills/3":
			io.WriteString(w, `{"data":[{"id":4,"skill_name":"Go","proficiency":"Expert"}]}`)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
	ctx := context.Background()

	edu, err := c.ListEducation(ctx, "tok", "3")
	if err != nil || len(edu) != 1 || edu[0].StartYear != 2010 {
		t.Errorf("ListEducation = %+v, %v", edu, err)
	}
	exp, err := c.ListExperience(ctx, "tok", "3")
	if err != nil || len(exp) != 1 || exp[0].CompanyName != "Acme" {
		t.Errorf("ListExperience = %+v, %v", exp, err)
	}
	skills, err := c.ListSkills(ctx, "tok", "3")
	if err != nil || len(skills) != 1 || skills[0].Proficiency != model.ProficiencyExpert {
		t.Errorf("ListSkills = %+v, %v", skills, err)
	}
	c.AddExperience(ctx, "tok", "3", model.Experience{CompanyName: "Acme"})
	c.DeleteExperience(ctx, "tok", "2")
	c.DeleteEducation(ctx, "tok", "1")
	c.DeleteSkill(ctx, "tok", "4")

	want := []string{
		"GET /education/3",
		"GET /experience/3",
		"GET /skills/3",
		"POST /experience/3",
		"DELETE /experience/delete/2",
		"DELETE /education/1",
		"DELETE /skills/4",
	}
	if len(seen) != len(want) {
		t.Fatalf("リクエスト数 = %d, want %d (%v)", len(seen), len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("request[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestJobSeekerClient_GetResume(t *testing.T) {
	c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resume/3/7" {
			t.Errorf("path = %s, want /resume/3/7", r.URL.Path)
		}
		io.WriteString(w, `{"data":{"profile":{"personalInfo":{"full_name":"Alice"},"education":[{"institution":"MIT","start_year":2010,"end_year":"2014"}],"about":"hi"}}}`)
	})

	resume, err := c.GetResume(context.Background(), "tok", "3", "7")
	if err != nil {
		t.Fatalf("GetResume がエラーを返した: %v", err)
	}
	if resume.PersonalInfo.FullName != "Alice" || resume.About != "hi" {
		t.Errorf("resume = %+v", resume)
	}
	if resume.Education[0].StartYear != "2010" || resume.Education[0].EndYear != "2014" {
		t.Errorf("education = %+v", resume.Education[0])
	}
}

func TestJobSeekerClient_ListJobs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"配列", `[{"id":1,"title":"Go Engineer"},{"id":2,"title":"SRE"}]`, 2},
		{"jobsで包まれた形式", `{"jobs":[{"id":1,"title":"Go Engineer"}]}`, 1},
		{"dataで包まれた形式", `{"data":[{"id":1,"title":"Go Engineer"}]}`, 1},
		{"null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newJobSeekerForTest(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/jobseeker/jobs/7" {
					t.Errorf("request = %s %s, want GET /jobseeker/jobs/7", r.Method, r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer tok" {
					t.Errorf("Authorization = %q", got)
				}
				io.WriteString(w, tt.body)
			})

			jobs, err := c.ListJobs(context.Background(), "tok", "7")
			if err != nil {
				t.Fatalf("ListJobs がエラーを返した: %v", err)
			}
			if jobs == nil || len(jobs) != tt.want {
				t.Errorf("jobs = %+v, want %d件", jobs, tt.want)
			}
		})
	}
}

func TestEmployerClient_Login_Success(t *testing.T) {
	c := newEmployerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"token":    "etok",
			"employer": map[string]any{"id": "e1", "first_name": "Bob", "role": "employer"},
		})
	})

	token, emp, err := c.Login(context.Background(), "b@example.com", "pw")
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if token != "etok" || emp.ID != "e1" || emp.FirstName != "Bob" {
		t.Errorf("token = %q, employer = %+v", token, emp)
	}
}

func TestEmployerClient_GetJob_FromList(t *testing.T) {
	c := newEmployerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":1,"title":"A"},{"id":2,"title":"B"}]`)
	})

	job, err := c.GetJob(context.Background(), "2")
	if err != nil {
		t.Fatalf("GetJob がエラーを返した: %v", err)
	}
	if job.Title != "B" {
		t.Errorf("title = %q, want B", job.Title)
	}

	_, err = c.GetJob(context.Background(), "9")
	if !IsNotFound(err) {
		t.Errorf("IsNotFound = false, err = %v", err)
	}
}

func TestEmployerClient_GetJob_SingleObject(t *testing.T) {
	c := newEmployerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":5,"title":"Backend Engineer","requirements":"Go\n\nSQL\n"}`)
	})

	job, err := c.GetJob(context.Background(), "5")
	if err != nil {
		t.Fatalf("GetJob がエラーを返した: %v", err)
	}
	if got := job.RequirementList(); len(got) != 2 || got[0] != "Go" || got[1] != "SQL" {
		t.Errorf("RequirementList = %v", got)
	}
}

func TestEmployerClient_Analytics(t *testing.T) {
	c := newEmployerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"jobsPostedData":[{"month":"Jan","jobs":3}],"applicationsData":[{"month":"Jan","applications":10}],"jobPerformanceData":[{"title":"Dev","views":100,"applications":10}]}`)
	})

	a, err := c.Analytics(context.Background(), "etok")
	if err != nil {
		t.Fatalf("Analytics がエラーを返した: %v", err)
	}
	if a.JobsPosted[0].Jobs != 3 || a.Applications[0].Applications != 10 || a.JobPerformance[0].Views != 100 {
		t.Errorf("analytics = %+v", a)
	}
}

func TestEmployerClient_CreateJob_SnakeCaseBody(t *testing.T) {
	c := newEmployerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["employment_type"] != "Full-time" || body["application_deadline"] != "2026-12-31" {
			t.Errorf("body = %v", body)
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": 9, "title": "Dev"})
	})

	job, err := c.CreateJob(context.Background(), "etok", model.JobInput{
		Title:               "Dev",
		EmploymentType:      "Full-time",
		ApplicationDeadline: "2026-12-31",
	})
	if err != nil {
		t.Fatalf("CreateJob がエラーを返した: %v", err)
	}
	if job.ID != "9" {
		t.Errorf("job.ID = %q, want 9", job.ID)
	}
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message", `{"message":"Invalid credentials"}`, "Invalid credentials"},
		{"error", `{"error":"bad request"}`, "bad request"},
		{"errors", `{"errors":{"password":["Password too short"]}}`, "Password too short"},
		{"JSONでない", `oops`, ""},
		{"空オブジェクト", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractMessage([]byte(tt.body)); got != tt.want {
				t.Errorf("extractMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
