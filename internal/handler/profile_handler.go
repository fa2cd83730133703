package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/jobportal/internal/clientstate"
	"github.com/hitoshi/jobportal/internal/model"
	"github.com/hitoshi/jobportal/internal/profile"
)

// ProfileHandler は求職者プロフィール画面のHTTPハンドラー。
// すべてのルートはRequireRole(jobseeker)の内側に置く。
type ProfileHandler struct {
	logger *slog.Logger
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{logger: logger}
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	Profile       model.Profile `json:"profile"`
	NeedsCreation bool          `json:"needs_creation"`
}

// Get はプロフィールを取得する。未作成の場合はneeds_creation=trueを返す。
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}
	p, err := client.Profile.Load(r.Context())
	if err != nil {
		handleServiceError(w, err, "Failed to load profile.")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p, NeedsCreation: p.IsEmpty()})
}

// Create はプロフィールを作成する。
// POST /api/profile
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, http.StatusCreated, (*profile.Service).Create)
}

// Update はプロフィールを更新する。
// PUT /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, http.StatusOK, (*profile.Service).Update)
}

func (h *ProfileHandler) save(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	op func(*profile.Service, context.Context, model.ProfileFields) (model.Notice, error),
) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}
	var fields model.ProfileFields
	if !decodeJSON(w, r, &fields) {
		return
	}
	notice, err := op(client.Profile, r.Context(), fields)
	if err != nil {
		handleServiceError(w, err, notice.Message)
		return
	}
	writeJSON(w, status, noticeResponse{Notice: notice, Data: client.App.Profile.Get()})
}

// Delete はプロフィールを削除する。
// DELETE /api/profile
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}
	notice, err := client.Profile.Delete(r.Context())
	if err != nil {
		handleServiceError(w, err, notice.Message)
		return
	}
	writeJSON(w, http.StatusOK, noticeResponse{Notice: notice})
}

// ensureLoaded はプロフィールがまだ取得されていなければ取得する。
// 学歴・職歴・スキルはプロフィールIDをキーにするため、その前提を満たす。
func (h *ProfileHandler) ensureLoaded(ctx context.Context, client *clientstate.Client) {
	if !client.App.Profile.NeedsCreation() {
		return
	}
	if _, err := client.Profile.Load(ctx); err != nil {
		h.logger.Warn("failed to preload profile",
			slog.String("client_id", client.ID),
			slog.String("error", err.Error()),
		)
	}
}

// ListEducation は学歴一覧を返す。
// GET /api/profile/education
func (h *ProfileHandler) ListEducation(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, (*profile.Service).Education, "Failed to load education")
}

// AddEducation は学歴を追加する。
// POST /api/profile/education
func (h *ProfileHandler) AddEducation(w http.ResponseWriter, r *http.Request) {
	add(h, w, r, (*profile.Service).AddEducation)
}

// DeleteEducation は学歴を削除する。
// DELETE /api/profile/education/{id}
func (h *ProfileHandler) DeleteEducation(w http.ResponseWriter, r *http.Request) {
	remove(w, r, (*profile.Service).DeleteEducation)
}

// ListExperience は職歴一覧を返す。
// GET /api/profile/experience
func (h *ProfileHandler) ListExperience(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, (*profile.Service).Experience, "Failed to load experiences")
}

// AddExperience は職歴を追加する。
// POST /api/profile/experience
func (h *ProfileHandler) AddExperience(w http.ResponseWriter, r *http.Request) {
	add(h, w, r, (*profile.Service).AddExperience)
}

// DeleteExperience は職歴を削除する。
// DELETE /api/profile/experience/{id}
func (h *ProfileHandler) DeleteExperience(w http.ResponseWriter, r *http.Request) {
	remove(w, r, (*profile.Service).DeleteExperience)
}

// ListSkills はスキル一覧を返す。
// GET /api/profile/skills
func (h *ProfileHandler) ListSkills(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, (*profile.Service).Skills, "Failed to load skills")
}

// AddSkill はスキルを追加する。
// POST /api/profile/skills
func (h *ProfileHandler) AddSkill(w http.ResponseWriter, r *http.Request) {
	add(h, w, r, (*profile.Service).AddSkill)
}

// DeleteSkill はスキルを削除する。
// DELETE /api/profile/skills/{id}
func (h *ProfileHandler) DeleteSkill(w http.ResponseWriter, r *http.Request) {
	remove(w, r, (*profile.Service).DeleteSkill)
}

// Completion はプロフィール充足度を返す。
// GET /api/profile/completion
func (h *ProfileHandler) Completion(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, (*profile.Service).Completion, "Failed to load profile completion")
}

// Resume は履歴書表示用のデータを返す。
// GET /api/profile/resume
func (h *ProfileHandler) Resume(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, (*profile.Service).Resume, "Failed to load resume")
}

func list[T any](
	h *ProfileHandler,
	w http.ResponseWriter,
	r *http.Request,
	op func(*profile.Service, context.Context) (T, error),
	fallback string,
) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}
	h.ensureLoaded(r.Context(), client)
	v, err := op(client.Profile, r.Context())
	if err != nil {
		handleServiceError(w, err, fallback)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func add[T any](
	h *ProfileHandler,
	w http.ResponseWriter,
	r *http.Request,
	op func(*profile.Service, context.Context, T) (model.Notice, error),
) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}
	var entry T
	if !decodeJSON(w, r, &entry) {
		return
	}
	h.ensureLoaded(r.Context(), client)
	notice, err := op(client.Profile, r.Context(), entry)
	if err != nil {
		handleServiceError(w, err, notice.Message)
		return
	}
	writeJSON(w, http.StatusCreated, noticeResponse{Notice: notice})
}

func remove(
	w http.ResponseWriter,
	r *http.Request,
	op func(*profile.Service, context.Context, model.ID) (model.Notice, error),
) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}
	notice, err := op(client.Profile, r.Context(), model.ID(chi.URLParam(r, "id")))
	if err != nil {
		handleServiceError(w, err, notice.Message)
		return
	}
	writeJSON(w, http.StatusOK, noticeResponse{Notice: notice})
}
