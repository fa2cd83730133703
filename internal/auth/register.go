package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/hitoshi/jobportal/internal/backend"
	"github.com/hitoshi/jobportal/internal/model"
)

// Registrar はバックエンドのアカウント登録API。
type Registrar[R any] interface {
	Register(ctx context.Context, reg R) (string, error)
}

// RegistrationService は求職者・採用企業のアカウント登録を行う。
type RegistrationService struct {
	jobSeekers Registrar[model.JobSeekerRegistration]
	employers  Registrar[model.EmployerRegistration]
	logger     *slog.Logger
}

// NewRegistrationService はRegistrationServiceを生成する。
func NewRegistrationService(
	jobSeekers Registrar[model.JobSeekerRegistration],
	employers Registrar[model.EmployerRegistration],
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{jobSeekers: jobSeekers, employers: employers, logger: logger}
}

// RegisterJobSeeker は求職者アカウントを登録する。
// 入力エラーはバックエンドを呼ばずにAPIError(validation)として返す。
func (s *RegistrationService) RegisterJobSeeker(ctx context.Context, reg model.JobSeekerRegistration) (model.Notice, error) {
	fields := validateCredentials(reg.Email, reg.Password, reg.ConfirmPassword, reg.TermsAccepted)
	if strings.TrimSpace(reg.FullName) == "" {
		fields["full_name"] = "Full name is required"
	}
	if len(fields) > 0 {
		return model.Failure(firstMessage(fields)), model.NewValidationError(fields)
	}

	msg, err := s.jobSeekers.Register(ctx, reg)
	if err != nil {
		s.logger.Warn("jobseeker registration failed", slog.String("error", err.Error()))
		text := backend.MessageOf(err, "Something went wrong!")
		return model.Failure(text), fmt.Errorf("%w: %w", model.NewBackendError(text), err)
	}
	if msg == "" {
		msg = "Registration successful!"
	}
	return model.Success(msg), nil
}

// RegisterEmployer は採用企業アカウントを登録する。
func (s *RegistrationService) RegisterEmployer(ctx context.Context, reg model.EmployerRegistration) (model.Notice, error) {
	fields := validateCredentials(reg.Email, reg.Password, reg.ConfirmPassword, reg.TermsAccepted)
	if strings.TrimSpace(reg.FirstName) == "" {
		fields["first_name"] = "First name is required"
	}
	if len(fields) > 0 {
		return model.Failure(firstMessage(fields)), model.NewValidationError(fields)
	}

	if _, err := s.employers.Register(ctx, reg); err != nil {
		s.logger.Warn("employer registration failed", slog.String("error", err.Error()))
		text := backend.MessageOf(err, "Registration failed. Please try again.")
		return model.Failure(text), fmt.Errorf("%w: %w", model.NewBackendError(text), err)
	}
	return model.Success("Registration successful!"), nil
}

func validateCredentials(email, password, confirm string, terms bool) map[string]string {
	fields := make(map[string]string)
	if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "A valid email address is required"
	}
	if password == "" {
		fields["password"] = "Password is required"
	} else if password != confirm {
		fields["confirmPassword"] = "Passwords do not match!"
	}
	if !terms {
		fields["terms_accepted"] = "You must accept the terms and conditions."
	}
	return fields
}

// firstMessage は画面のトーストに出す1件目のメッセージを選ぶ。
// パスワード不一致と利用規約を優先する。
func firstMessage(fields map[string]string) string {
	for _, k := range []string{"confirmPassword", "terms_accepted", "password", "email", "full_name", "first_name"} {
		if msg, ok := fields[k]; ok {
			return msg
		}
	}
	return "Invalid input"
}
