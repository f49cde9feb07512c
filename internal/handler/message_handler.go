package handler

import (
	"warbler/internal/authz"
	"warbler/internal/model"
	"warbler/internal/service"
	"warbler/pkg/response"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messages *service.MessageService
	likes    *service.LikeService
	guard    *authz.Guard
}

func NewMessageHandler(messages *service.MessageService, likes *service.LikeService, guard *authz.Guard) *MessageHandler {
	return &MessageHandler{messages: messages, likes: likes, guard: guard}
}

// CreateMessage 发布消息
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	type req struct {
		Text string `json:"text"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	actor := actorUser(c)
	if err := h.guard.Authorize(actor, authz.ActionCreateMessage, authz.Target{}).Err(); err != nil {
		response.FromError(c, err)
		return
	}

	message, err := h.messages.CreateMessage(c.Request.Context(), actor, r.Text)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "Message created", response.FilterMessageInfo(message))
}

// GetMessage 查看消息（公开），附带点赞数与当前用户是否已点赞
func (h *MessageHandler) GetMessage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid message id")
		return
	}

	ctx := c.Request.Context()
	message, err := h.messages.GetMessage(ctx, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.guard.Authorize(actorUser(c), authz.ActionView, authz.Target{Message: message}).Err(); err != nil {
		response.FromError(c, err)
		return
	}

	count, err := h.likes.LikeCount(ctx, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	info := response.FilterMessageInfo(message)
	info.LikeCount = &count
	if actor := actorUser(c); actor != nil {
		liked, err := h.likes.HasLiked(ctx, actor.ID, id)
		if err != nil {
			response.FromError(c, err)
			return
		}
		info.Liked = &liked
	}
	response.Success(c, info)
}

// DeleteMessage 删除消息，仅所有者
// 消息不存在与非所有者返回相同的拒绝
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.Unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	message, err := h.lookup(c, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	if err := h.guard.Authorize(actorUser(c), authz.ActionDeleteMessage, authz.Target{Message: message}).Err(); err != nil {
		response.FromError(c, err)
		return
	}

	if err := h.messages.DeleteMessage(ctx, id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "Message deleted", nil)
}

// lookup 读取消息，不存在时返回nil而非错误
func (h *MessageHandler) lookup(c *gin.Context, id uint) (*model.Message, error) {
	message, err := h.messages.GetMessage(c.Request.Context(), id)
	if model.IsKind(err, model.KindNotFound) {
		return nil, nil
	}
	return message, err
}
