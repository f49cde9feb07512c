package service

import (
	"context"
	"errors"
	"strings"

	"warbler/internal/authz"
	"warbler/internal/model"
	"warbler/internal/repository"
	"warbler/pkg/logger"
	"warbler/pkg/password"

	"go.uber.org/zap"
)

// SignupInput 注册参数
type SignupInput struct {
	Username string `json:"username" validate:"required,max=30"`
	Email    string `json:"email" validate:"required,email,max=50"`
	Password string `json:"password" validate:"required,password"`
	ImageURL string `json:"image_url" validate:"omitempty,url,max=255"`
}

// ProfileInput 资料修改参数
// 用户名、邮箱为空表示不修改；头像、背景图为空表示恢复默认
type ProfileInput struct {
	Username       string `json:"username" validate:"omitempty,max=30"`
	Email          string `json:"email" validate:"omitempty,email,max=50"`
	ImageURL       string `json:"image_url" validate:"omitempty,url,max=255"`
	HeaderImageURL string `json:"header_image_url" validate:"omitempty,url,max=255"`
	Bio            string `json:"bio"`
}

type UserService struct {
	repo *repository.UserRepository
}

func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Signup 注册
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, in.Username, in.Email, 0); err != nil {
		return nil, err
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, model.NewInternalError(err)
	}

	user := &model.User{
		Username:       in.Username,
		Email:          in.Email,
		PasswordHash:   hash,
		ImageURL:       orDefault(in.ImageURL, model.DefaultImageURL),
		HeaderImageURL: model.DefaultHeaderImageURL,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		// 唯一索引兜底并发注册
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.duplicateError(ctx, in.Username, in.Email, 0)
		}
		return nil, model.NewInternalError(err)
	}

	logger.Info("用户注册成功", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Authenticate 校验用户名与密码
// 用户不存在与密码错误都返回 nil, nil，只有存储故障返回错误
func (s *UserService) Authenticate(ctx context.Context, username, plain string) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	if !password.Verify(plain, user.PasswordHash) {
		return nil, nil
	}
	return user, nil
}

// VerifyCredential 重新校验用户密码
func (s *UserService) VerifyCredential(user *model.User, plain string) bool {
	if user == nil {
		return false
	}
	return password.Verify(plain, user.PasswordHash)
}

// UpdateProfile 修改资料，必须先通过当前密码校验
func (s *UserService) UpdateProfile(ctx context.Context, user *model.User, in ProfileInput, currentPassword string) (*model.User, error) {
	if !s.VerifyCredential(user, currentPassword) {
		return nil, model.ErrIncorrectPassword
	}
	return s.applyProfile(ctx, user, in)
}

// UpdateProfileVerified 修改资料，使用鉴权时签发的密码凭证，不再重复校验密码
func (s *UserService) UpdateProfileVerified(ctx context.Context, user *model.User, in ProfileInput, proof authz.CredentialProof) (*model.User, error) {
	if !proof.Covers(user) {
		return nil, model.ErrIncorrectPassword
	}
	return s.applyProfile(ctx, user, in)
}

func (s *UserService) applyProfile(ctx context.Context, user *model.User, in ProfileInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.HeaderImageURL = strings.TrimSpace(in.HeaderImageURL)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, in.Username, in.Email, user.ID); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"image_url":        orDefault(in.ImageURL, model.DefaultImageURL),
		"header_image_url": orDefault(in.HeaderImageURL, model.DefaultHeaderImageURL),
		"bio":              in.Bio,
	}
	if in.Username != "" {
		fields["username"] = in.Username
	}
	if in.Email != "" {
		fields["email"] = in.Email
	}

	updated, err := s.repo.UpdateProfile(ctx, user.ID, fields)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.duplicateError(ctx, in.Username, in.Email, user.ID)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNotFoundError("user", user.ID)
		}
		return nil, model.NewInternalError(err)
	}
	return updated, nil
}

// GetUser 获取用户
func (s *UserService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.NewNotFoundError("user", id)
	}
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	return user, nil
}

// ensureAvailable 检查用户名和邮箱未被其他用户占用，空值跳过
func (s *UserService) ensureAvailable(ctx context.Context, username, email string, excludeID uint) error {
	checks := []struct {
		column, value, message string
	}{
		{"username", username, "Username already taken"},
		{"email", email, "Email already taken"},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		taken, err := s.repo.IsTaken(ctx, c.column, c.value, excludeID)
		if err != nil {
			return model.NewInternalError(err)
		}
		if taken {
			return model.NewValidationError(c.column, c.message)
		}
	}
	return nil
}

// duplicateError 唯一索引冲突后重新检查，定位被占用的字段
// 冲突方已被删除时按用户名报告
func (s *UserService) duplicateError(ctx context.Context, username, email string, excludeID uint) error {
	if err := s.ensureAvailable(ctx, username, email, excludeID); err != nil {
		return err
	}
	return model.NewValidationError("username", "Username or email already taken")
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
