package service

import (
	"context"
	"errors"
	"strings"

	"warbler/internal/model"
	"warbler/internal/repository"
	"warbler/pkg/logger"
	"warbler/pkg/redis"

	"go.uber.org/zap"
)

type messageInput struct {
	Text string `json:"text" validate:"required,max=140"`
}

type MessageService struct {
	repo   *repository.MessageRepository
	counts *redis.LikeCountCache
}

// NewMessageService counts 可为nil
func NewMessageService(repo *repository.MessageRepository, counts *redis.LikeCountCache) *MessageService {
	return &MessageService{repo: repo, counts: counts}
}

// CreateMessage 以 owner 身份发布消息
func (s *MessageService) CreateMessage(ctx context.Context, owner *model.User, text string) (*model.Message, error) {
	in := messageInput{Text: strings.TrimSpace(text)}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	message := &model.Message{Text: in.Text, UserID: owner.ID}
	if err := s.repo.Create(ctx, message); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNotFoundError("user", owner.ID)
		}
		return nil, model.NewInternalError(err)
	}
	return message, nil
}

// DeleteMessage 删除消息及其点赞，不做鉴权
func (s *MessageService) DeleteMessage(ctx context.Context, id uint) error {
	if err := s.repo.DeleteWithLikes(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotFoundError("message", id)
		}
		return model.NewInternalError(err)
	}

	if s.counts != nil {
		if err := s.counts.Invalidate(ctx, id); err != nil {
			logger.Warn("点赞数缓存失效失败", zap.Uint("message_id", id), zap.Error(err))
		}
	}
	return nil
}

// GetMessage 获取消息
func (s *MessageService) GetMessage(ctx context.Context, id uint) (*model.Message, error) {
	message, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.NewNotFoundError("message", id)
	}
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	return message, nil
}
