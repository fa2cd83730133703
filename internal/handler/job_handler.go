package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/jobportal/internal/job"
	"github.com/hitoshi/jobportal/internal/model"
)

// JobHandler は求人の閲覧・応募・掲載のHTTPハンドラー。
type JobHandler struct{}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler() *JobHandler {
	return &JobHandler{}
}

// jobResponse は求人詳細のAPIレスポンス。
// 必要条件と待遇は画面の箇条書き用に行ごとに分割して返す。
type jobResponse struct {
	model.Job
	RequirementList []string `json:"requirement_list"`
	BenefitList     []string `json:"benefit_list"`
}

// applyResponse は応募結果のAPIレスポンス。
type applyResponse struct {
	Applied bool         `json:"applied"`
	Notice  model.Notice `json:"notice"`
}

// Browse は求人一覧を絞り込み・ページ分割して返す。
// GET /api/jobs?keyword=&location=&type=&page=&page_size=
func (h *JobHandler) Browse(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := job.Filter{
		Keyword:  q.Get("keyword"),
		Location: q.Get("location"),
		Type:     q.Get("type"),
		Page:     queryInt(q.Get("page"), 1),
		PageSize: queryInt(q.Get("page_size"), job.DefaultPageSize),
	}

	page, err := client.Jobs.Browse(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err, "Failed to load jobs.")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get は求人詳細を返す。
// GET /api/jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}

	j, err := client.Jobs.Get(r.Context(), model.ID(chi.URLParam(r, "id")))
	if err != nil {
		handleServiceError(w, err, "Failed to load job.")
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{
		Job:             j,
		RequirementList: j.RequirementList(),
		BenefitList:     j.BenefitList(),
	})
}

// Recommended はログイン中の求職者へのおすすめ求人を返す。
// GET /api/jobs/recommended
func (h *JobHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}

	jobs, err := client.Jobs.Recommended(r.Context())
	if err != nil {
		handleServiceError(w, err, "Failed to load jobs.")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// Apply は求人に応募する。応募済みの場合も200で情報通知を返す。
// POST /api/jobs/{id}/apply
func (h *JobHandler) Apply(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}

	res, err := client.Applications.Apply(r.Context(), model.ID(chi.URLParam(r, "id")))
	if err != nil {
		handleServiceError(w, err, res.Notice.Message)
		return
	}
	writeJSON(w, http.StatusOK, applyResponse{Applied: res.Applied, Notice: res.Notice})
}

// Applications はログイン中の求職者の応募履歴を返す。
// GET /api/applications
func (h *JobHandler) Applications(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}

	apps, err := client.Applications.List(r.Context())
	if err != nil {
		handleServiceError(w, err, "Failed to load applications")
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

// Dashboard はログイン中の採用企業が掲載した求人を返す。
// GET /api/employer/jobs
func (h *JobHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}

	jobs, err := client.Jobs.Dashboard(r.Context())
	if err != nil {
		handleServiceError(w, err, "Failed to load jobs.")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// Post は求人を掲載する。
// POST /api/employer/jobs
func (h *JobHandler) Post(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}

	var input model.JobInput
	if !decodeJSON(w, r, &input) {
		return
	}

	created, notice, err := client.Jobs.Post(r.Context(), input)
	if err != nil {
		handleServiceError(w, err, notice.Message)
		return
	}
	writeJSON(w, http.StatusCreated, noticeResponse{Notice: notice, Data: created})
}

// Analytics は採用企業ダッシュボードの集計値を返す。
// GET /api/employer/analytics
func (h *JobHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}

	a, err := client.Jobs.Analytics(r.Context())
	if err != nil {
		handleServiceError(w, err, "Failed to load analytics.")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// queryInt はクエリパラメータを正の整数として読む。読めない場合はdefを返す。
func queryInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
