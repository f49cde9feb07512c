package service

import (
	"context"
	"errors"
	"iter"

	"warbler/internal/model"
	"warbler/internal/repository"
	"warbler/pkg/logger"
	"warbler/pkg/metrics"
	"warbler/pkg/redis"

	"go.uber.org/zap"
)

// likesPageSize LikesFor 每次查询的条数
const likesPageSize = 50

// LikeNotifier 点赞通知，由WebSocket管理器实现
type LikeNotifier interface {
	NotifyLike(ownerID, messageID, likerID uint)
}

type LikeService struct {
	likes    *repository.LikeRepository
	messages *repository.MessageRepository
	counts   *redis.LikeCountCache
	notifier LikeNotifier
}

// NewLikeService counts 与 notifier 可为nil
func NewLikeService(likes *repository.LikeRepository, messages *repository.MessageRepository, counts *redis.LikeCountCache, notifier LikeNotifier) *LikeService {
	return &LikeService{likes: likes, messages: messages, counts: counts, notifier: notifier}
}

// Like 点赞，重复点赞为幂等成功（created=false）
func (s *LikeService) Like(ctx context.Context, actor *model.User, messageID uint) (created bool, err error) {
	defer func() { observe("like", created, err) }()

	message, err := s.messages.GetByID(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, model.NewNotFoundError("message", messageID)
	}
	if err != nil {
		return false, model.NewInternalError(err)
	}
	if message.OwnedBy(actor.ID) {
		return false, model.ErrSelfLike
	}

	created, err = s.likes.Create(ctx, actor.ID, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		// 与删除并发，消息已不存在
		return false, model.NewNotFoundError("message", messageID)
	}
	if err != nil {
		return false, model.NewInternalError(err)
	}

	if created {
		s.invalidate(ctx, messageID)
		if s.notifier != nil {
			s.notifier.NotifyLike(message.UserID, messageID, actor.ID)
		}
	}
	return created, nil
}

// Unlike 取消点赞，幂等
func (s *LikeService) Unlike(ctx context.Context, actor *model.User, messageID uint) (removed bool, err error) {
	defer func() { observe("unlike", removed, err) }()

	removed, err = s.likes.Delete(ctx, actor.ID, messageID)
	if err != nil {
		return false, model.NewInternalError(err)
	}
	if removed {
		s.invalidate(ctx, messageID)
	}
	return removed, nil
}

// LikesFor 返回用户点赞过的消息序列，按消息ID升序
// 每次遍历都会重新查询，可重复遍历
func (s *LikeService) LikesFor(ctx context.Context, userID uint) iter.Seq2[*model.Message, error] {
	return func(yield func(*model.Message, error) bool) {
		var after uint
		for {
			page, err := s.likes.ListLikedMessages(ctx, userID, after, likesPageSize)
			if err != nil {
				yield(nil, model.NewInternalError(err))
				return
			}
			for _, m := range page {
				if !yield(m, nil) {
					return
				}
				after = m.ID
			}
			if len(page) < likesPageSize {
				return
			}
		}
	}
}

// HasLiked 判断用户是否已点赞
func (s *LikeService) HasLiked(ctx context.Context, userID, messageID uint) (bool, error) {
	ok, err := s.likes.Exists(ctx, userID, messageID)
	if err != nil {
		return false, model.NewInternalError(err)
	}
	return ok, nil
}

// LikeCount 消息点赞数，优先读缓存
func (s *LikeService) LikeCount(ctx context.Context, messageID uint) (int64, error) {
	load := func(ctx context.Context) (int64, error) {
		return s.likes.CountByMessage(ctx, messageID)
	}

	var (
		n   int64
		err error
	)
	if s.counts != nil {
		n, err = s.counts.Get(ctx, messageID, load)
	} else {
		n, err = load(ctx)
	}
	if err != nil {
		return 0, model.NewInternalError(err)
	}
	return n, nil
}

func (s *LikeService) invalidate(ctx context.Context, messageID uint) {
	if s.counts == nil {
		return
	}
	if err := s.counts.Invalidate(ctx, messageID); err != nil {
		logger.Warn("点赞数缓存失效失败", zap.Uint("message_id", messageID), zap.Error(err))
	}
}

func observe(operation string, changed bool, err error) {
	switch {
	case err != nil:
		metrics.ObserveReaction(operation, metrics.OutcomeError)
	case !changed:
		metrics.ObserveReaction(operation, metrics.OutcomeNoop)
	case operation == "like":
		metrics.ObserveReaction(operation, metrics.OutcomeCreated)
	default:
		metrics.ObserveReaction(operation, metrics.OutcomeRemoved)
	}
}
