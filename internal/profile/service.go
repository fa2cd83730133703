package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/jobportal/internal/backend"
	"github.com/hitoshi/jobportal/internal/model"
	"github.com/hitoshi/jobportal/internal/security"
)

// API はプロフィール関連の求職者APIエンドポイント。
type API interface {
	GetProfile(ctx context.Context, token string, userID model.ID) (model.Profile, error)
	CreateProfile(ctx context.Context, token string, fields model.ProfileFields) (model.Profile, error)
	UpdateProfile(ctx context.Context, token string, userID model.ID, fields model.ProfileFields) error
	DeleteProfile(ctx context.Context, token string, userID model.ID) error

	ListEducation(ctx context.Context, token string, profileID model.ID) ([]model.Education, error)
	AddEducation(ctx context.Context, token string, edu model.Education) error
	DeleteEducation(ctx context.Context, token string, id model.ID) error

	ListExperience(ctx context.Context, token string, profileID model.ID) ([]model.Experience, error)
	AddExperience(ctx context.Context, token string, profileID model.ID, exp model.Experience) error
	DeleteExperience(ctx context.Context, token string, id model.ID) error

	ListSkills(ctx context.Context, token string, profileID model.ID) ([]model.Skill, error)
	AddSkill(ctx context.Context, token string, skill model.Skill) error
	DeleteSkill(ctx context.Context, token string, id model.ID) error

	GetCompletion(ctx context.Context, token string, profileID model.ID) (model.Completion, error)
	GetResume(ctx context.Context, token string, profileID, userID model.ID) (model.Resume, error)
}

// SessionSource はログイン中のセッションを返す。
type SessionSource interface {
	Session() model.Session
}

// ServiceConfig はプロフィールサービスの設定。
type ServiceConfig struct {
	CheckResumeLink bool // 保存前に履歴書リンクの到達性を確認する
}

// Service はプロフィール画面（基本情報・学歴・職歴・スキル・充足度）の操作を提供する。
// 取得したプロフィールはStoreに反映する。
type Service struct {
	api      API
	store    *Store
	session  SessionSource
	links    security.LinkChecker
	sanitize security.ContentSanitizerService
	logger   *slog.Logger
	config   ServiceConfig
}

// NewService はServiceを生成する。linksはCheckResumeLinkがfalseならnilでよい。
func NewService(
	api API,
	store *Store,
	session SessionSource,
	links security.LinkChecker,
	sanitize security.ContentSanitizerService,
	logger *slog.Logger,
	config ServiceConfig,
) *Service {
	return &Service{
		api:      api,
		store:    store,
		session:  session,
		links:    links,
		sanitize: sanitize,
		logger:   logger,
		config:   config,
	}
}

// jobSeeker は求職者としてログイン中であることを確認し、トークンとユーザーIDを返す。
func (s *Service) jobSeeker() (string, model.ID, error) {
	sess := s.session.Session()
	if sess.Role != model.RoleJobSeeker || sess.JobSeeker == nil || sess.Token == "" {
		return "", "", model.NewUnauthorizedError()
	}
	return sess.Token, sess.JobSeeker.ID, nil
}

// profileID は保存済みプロフィールのIDを返す。未作成ならPROFILE_REQUIRED。
func (s *Service) profileID() (model.ID, error) {
	p := s.store.Get()
	if p.IsEmpty() {
		return "", model.NewProfileRequiredError()
	}
	return p.ID, nil
}

// Load はプロフィールを取得してStoreに反映する。
// 未作成（404または空オブジェクト）の場合は既定値を反映し、NeedsCreationがtrueになる。
func (s *Service) Load(ctx context.Context) (model.Profile, error) {
	token, userID, err := s.jobSeeker()
	if err != nil {
		return model.DefaultProfile(), err
	}

	p, err := s.api.GetProfile(ctx, token, userID)
	if err != nil {
		if backend.IsNotFound(err) {
			s.store.Clear()
			return model.DefaultProfile(), nil
		}
		s.logger.Error("failed to load profile",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
		return s.store.Get(), err
	}

	p.About = s.sanitize.Sanitize(p.About)
	s.store.Set(p)
	return p, nil
}

// Create はプロフィールを作成し、作成結果をStoreに反映する。
func (s *Service) Create(ctx context.Context, fields model.ProfileFields) (model.Notice, error) {
	token, userID, err := s.jobSeeker()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	if err := s.validate(ctx, fields); err != nil {
		return model.Failure(messageOf(err)), err
	}

	fields.UserID = userID
	created, err := s.api.CreateProfile(ctx, token, fields)
	if err != nil {
		s.logger.Error("failed to create profile", slog.String("error", err.Error()))
		return model.Failure(backend.MessageOf(err, "Failed to create profile.")), err
	}
	if created.IsEmpty() {
		// 応答に作成結果が含まれない場合は取り直す
		if _, err := s.Load(ctx); err != nil {
			return model.Failure("Profile created, but it could not be reloaded."), err
		}
	} else {
		s.store.Set(created)
	}
	return model.Success("Profile created successfully!"), nil
}

// Update はプロフィールを更新し、Storeに反映する。
func (s *Service) Update(ctx context.Context, fields model.ProfileFields) (model.Notice, error) {
	token, userID, err := s.jobSeeker()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	if err := s.validate(ctx, fields); err != nil {
		return model.Failure(messageOf(err)), err
	}

	fields.UserID = userID
	if err := s.api.UpdateProfile(ctx, token, userID, fields); err != nil {
		s.logger.Error("failed to update profile", slog.String("error", err.Error()))
		return model.Failure(backend.MessageOf(err, "Failed to update profile.")), err
	}

	cur := s.store.Get()
	cur.UserID = userID
	cur.FullName = fields.FullName
	cur.Email = fields.Email
	cur.PhoneNumber = fields.PhoneNumber
	cur.Location = fields.Location
	cur.InterestedArea = fields.InterestedArea
	cur.About = s.sanitize.Sanitize(fields.About)
	cur.DateOfBirth = fields.DateOfBirth
	cur.ResumeLink = fields.ResumeLink
	s.store.Set(cur)
	return model.Success("Profile updated!"), nil
}

// Delete はプロフィールを削除し、Storeを既定値に戻す。
func (s *Service) Delete(ctx context.Context) (model.Notice, error) {
	token, userID, err := s.jobSeeker()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	if err := s.api.DeleteProfile(ctx, token, userID); err != nil && !backend.IsNotFound(err) {
		return model.Failure(backend.MessageOf(err, "Failed to delete profile.")), err
	}
	s.store.Clear()
	return model.Success("Profile deleted."), nil
}

// validate は必須項目と履歴書リンクを検証する。
func (s *Service) validate(ctx context.Context, fields model.ProfileFields) error {
	errs := make(map[string]string)
	if strings.TrimSpace(fields.FullName) == "" {
		errs["full_name"] = "Full name is required"
	}
	if strings.TrimSpace(fields.Email) == "" {
		errs["email"] = "Email is required"
	}
	if len(errs) > 0 {
		return model.NewValidationError(errs)
	}

	if fields.ResumeLink == "" {
		return nil
	}
	if err := security.ValidateURL(fields.ResumeLink); err != nil {
		return model.NewInvalidResumeLinkError(err.Error())
	}
	if s.config.CheckResumeLink && s.links != nil {
		if err := s.links.Check(ctx, fields.ResumeLink); err != nil {
			s.logger.Warn("resume link check failed",
				slog.String("url", fields.ResumeLink),
				slog.String("error", err.Error()),
			)
			return model.NewInvalidResumeLinkError(err.Error())
		}
	}
	return nil
}

// Education は学歴一覧を返す。
func (s *Service) Education(ctx context.Context) ([]model.Education, error) {
	token, _, err := s.jobSeeker()
	if err != nil {
		return nil, err
	}
	pid, err := s.profileID()
	if err != nil {
		return nil, err
	}
	return s.api.ListEducation(ctx, token, pid)
}

// AddEducation は学歴を追加する。
func (s *Service) AddEducation(ctx context.Context, edu model.Education) (model.Notice, error) {
	token, _, err := s.jobSeeker()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	pid, err := s.profileID()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	errs := make(map[string]string)
	if strings.TrimSpace(edu.InstitutionName) == "" {
		errs["institution_name"] = "Institution name is required"
	}
	if edu.StartYear != 0 && edu.EndYear != 0 && edu.EndYear < edu.StartYear {
		errs["end_year"] = "End year must not be before start year"
	}
	if len(errs) > 0 {
		verr := model.NewValidationError(errs)
		return model.Failure(verr.Message), verr
	}

	edu.ProfileID = pid
	if err := s.api.AddEducation(ctx, token, edu); err != nil {
		return model.Failure(backend.MessageOf(err, "Failed to add education.")), err
	}
	return model.Success("Education added successfully!"), nil
}

// DeleteEducation は学歴を削除する。
func (s *Service) DeleteEducation(ctx context.Context, id model.ID) (model.Notice, error) {
	token, _, err := s.jobSeeker()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	if err := s.api.DeleteEducation(ctx, token, id); err != nil {
		return model.Failure(backend.MessageOf(err, "Failed to delete education.")), err
	}
	return model.Success("Education deleted."), nil
}

// Experience は職歴一覧を返す。
func (s *Service) Experience(ctx context.Context) ([]model.Experience, error) {
	token, _, err := s.jobSeeker()
	if err != nil {
		return nil, err
	}
	pid, err := s.profileID()
	if err != nil {
		return nil, err
	}
	return s.api.ListExperience(ctx, token, pid)
}

// AddExperience は職歴を追加する。
// 在職中の場合は終了日を空にする。
func (s *Service) AddExperience(ctx context.Context, exp model.Experience) (model.Notice, error) {
	token, _, err := s.jobSeeker()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	pid, err := s.profileID()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	errs := make(map[string]string)
	if strings.TrimSpace(exp.CompanyName) == "" {
		errs["company_name"] = "Company name is required"
	}
	if strings.TrimSpace(exp.Position) == "" {
		errs["position"] = "Position is required"
	}
	if len(errs) > 0 {
		verr := model.NewValidationError(errs)
		return model.Failure(verr.Message), verr
	}
	if exp.CurrentlyWorking {
		exp.EndDate = ""
	}

	exp.ProfileID = pid
	if err := s.api.AddExperience(ctx, token, pid, exp); err != nil {
		return model.Failure(backend.MessageOf(err, "Failed to add experience.")), err
	}
	return model.Success("Experience added successfully!"), nil
}

// DeleteExperience は職歴を削除する。
func (s *Service) DeleteExperience(ctx context.Context, id model.ID) (model.Notice, error) {
	token, _, err := s.jobSeeker()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	if err := s.api.DeleteExperience(ctx, token, id); err != nil {
		return model.Failure(backend.MessageOf(err, "Failed to delete experience.")), err
	}
	return model.Success("Experience deleted."), nil
}

// Skills はスキル一覧を返す。
func (s *Service) Skills(ctx context.Context) ([]model.Skill, error) {
	token, _, err := s.jobSeeker()
	if err != nil {
		return nil, err
	}
	pid, err := s.profileID()
	if err != nil {
		return nil, err
	}
	return s.api.ListSkills(ctx, token, pid)
}

// AddSkill はスキルを追加する。
func (s *Service) AddSkill(ctx context.Context, skill model.Skill) (model.Notice, error) {
	token, _, err := s.jobSeeker()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	pid, err := s.profileID()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	errs := make(map[string]string)
	if strings.TrimSpace(skill.SkillName) == "" {
		errs["skill_name"] = "Skill name is required"
	}
	switch skill.Proficiency {
	case "":
		skill.Proficiency = model.ProficiencyBeginner
	case model.ProficiencyBeginner, model.ProficiencyIntermediate, model.ProficiencyAdvanced, model.ProficiencyExpert:
	default:
		errs["proficiency"] = "Unknown proficiency level"
	}
	if len(errs) > 0 {
		verr := model.NewValidationError(errs)
		return model.Failure(verr.Message), verr
	}

	skill.ProfileID = pid
	if err := s.api.AddSkill(ctx, token, skill); err != nil {
		return model.Failure(backend.MessageOf(err, "Failed to add skill.")), err
	}
	return model.Success("Skill added successfully!"), nil
}

// DeleteSkill はスキルを削除する。
func (s *Service) DeleteSkill(ctx context.Context, id model.ID) (model.Notice, error) {
	token, _, err := s.jobSeeker()
	if err != nil {
		return model.Failure(messageOf(err)), err
	}
	if err := s.api.DeleteSkill(ctx, token, id); err != nil {
		return model.Failure(backend.MessageOf(err, "Failed to delete skill.")), err
	}
	return model.Success("Skill deleted."), nil
}

// Completion はプロフィール充足度を返す。
func (s *Service) Completion(ctx context.Context) (model.CompletionReport, error) {
	token, _, err := s.jobSeeker()
	if err != nil {
		return model.CompletionReport{}, err
	}
	pid, err := s.profileID()
	if err != nil {
		return model.CompletionReport{}, err
	}
	c, err := s.api.GetCompletion(ctx, token, pid)
	if err != nil {
		return model.CompletionReport{}, fmt.Errorf("failed to get profile completion: %w", err)
	}
	return c.Report(), nil
}

// Resume はログイン中の求職者の履歴書（採用企業向け表示）を返す。
func (s *Service) Resume(ctx context.Context) (model.Resume, error) {
	token, userID, err := s.jobSeeker()
	if err != nil {
		return model.Resume{}, err
	}
	pid, err := s.profileID()
	if err != nil {
		return model.Resume{}, err
	}
	r, err := s.api.GetResume(ctx, token, pid, userID)
	if err != nil {
		return model.Resume{}, err
	}
	r.About = s.sanitize.Sanitize(r.About)
	return r, nil
}

// messageOf はユーザー向けのメッセージを取り出す。
func messageOf(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return backend.MessageOf(err, "Something went wrong")
}
