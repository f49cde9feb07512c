package handler

import (
	"warbler/internal/authz"
	"warbler/internal/model"
	"warbler/internal/service"
	"warbler/pkg/response"

	"github.com/gin-gonic/gin"
)

type LikeHandler struct {
	messages *service.MessageService
	likes    *service.LikeService
	guard    *authz.Guard
}

func NewLikeHandler(messages *service.MessageService, likes *service.LikeService, guard *authz.Guard) *LikeHandler {
	return &LikeHandler{messages: messages, likes: likes, guard: guard}
}

// Like 点赞
func (h *LikeHandler) Like(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid message id")
		return
	}

	ctx := c.Request.Context()
	actor := actorUser(c)

	var message *model.Message
	if actor != nil {
		m, err := h.messages.GetMessage(ctx, id)
		if err != nil && !model.IsKind(err, model.KindNotFound) {
			response.FromError(c, err)
			return
		}
		message = m
	}

	if err := h.guard.Authorize(actor, authz.ActionLikeMessage, authz.Target{Message: message}).Err(); err != nil {
		response.FromError(c, err)
		return
	}

	created, err := h.likes.Like(ctx, actor, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"message_id": id, "liked": true, "created": created})
}

// Unlike 取消点赞，重复取消不报错
func (h *LikeHandler) Unlike(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid message id")
		return
	}

	actor := actorUser(c)
	if err := h.guard.Authorize(actor, authz.ActionUnlikeMessage, authz.Target{}).Err(); err != nil {
		response.FromError(c, err)
		return
	}

	removed, err := h.likes.Unlike(c.Request.Context(), actor, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"message_id": id, "liked": false, "removed": removed})
}
