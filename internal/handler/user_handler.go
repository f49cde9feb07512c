package handler

import (
	"net/http"
	"strconv"

	"warbler/internal/authz"
	"warbler/internal/model"
	"warbler/internal/service"
	"warbler/internal/session"
	"warbler/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultLikesLimit = 100
	maxLikesLimit     = 500
)

type UserHandler struct {
	users    *service.UserService
	likes    *service.LikeService
	sessions *session.Manager
	guard    *authz.Guard
}

func NewUserHandler(users *service.UserService, likes *service.LikeService, sessions *session.Manager, guard *authz.Guard) *UserHandler {
	return &UserHandler{users: users, likes: likes, sessions: sessions, guard: guard}
}

// Signup 注册并直接登录
func (h *UserHandler) Signup(c *gin.Context) {
	var in service.SignupInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.users.Signup(c.Request.Context(), in)
	if err != nil {
		response.FromError(c, err)
		return
	}

	sess, err := h.sessions.Establish(c.Request.Context(), user)
	if err != nil {
		response.FromError(c, err)
		return
	}
	h.sessions.SetCookie(c, sess)

	response.Created(c, "Signed up", &response.LoginResponse{
		User:         response.FilterUserInfo(user),
		SessionToken: sess.Token,
		CSRFToken:    sess.CSRFToken,
	})
}

// Login 登录
func (h *UserHandler) Login(c *gin.Context) {
	type req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), r.Username, r.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if user == nil {
		response.Error(c, http.StatusUnauthorized, "Invalid credentials.")
		return
	}

	sess, err := h.sessions.Establish(c.Request.Context(), user)
	if err != nil {
		response.FromError(c, err)
		return
	}
	h.sessions.SetCookie(c, sess)

	response.SuccessWithMessage(c, "Hello, "+user.Username+"!", &response.LoginResponse{
		User:         response.FilterUserInfo(user),
		SessionToken: sess.Token,
		CSRFToken:    sess.CSRFToken,
	})
}

// Logout 登出
func (h *UserHandler) Logout(c *gin.Context) {
	if session.ActorFrom(c).IsAnonymous() {
		response.Unauthorized(c)
		return
	}

	if err := h.sessions.Clear(c.Request.Context(), h.sessions.TokenFromRequest(c)); err != nil {
		response.FromError(c, err)
		return
	}
	h.sessions.ClearCookie(c)
	response.SuccessWithMessage(c, "Goodbye!", nil)
}

// UpdateProfile 修改本人资料，需提交当前密码
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	type req struct {
		service.ProfileInput
		Password string `json:"password"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	actor := session.ActorFrom(c)
	decision := h.guard.Authorize(actor.User, authz.ActionEditProfile, authz.Target{
		User:       actor.User,
		Credential: r.Password,
	})
	if err := decision.Err(); err != nil {
		response.FromError(c, err)
		return
	}

	user, err := h.users.UpdateProfileVerified(c.Request.Context(), actor.User, r.ProfileInput, decision.Proof())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "Profile updated", response.FilterUserInfo(user))
}

// GetUserLikes 用户点赞过的消息（公开）
func (h *UserHandler) GetUserLikes(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid user id")
		return
	}

	limit := defaultLikesLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = min(v, maxLikesLimit)
	}

	ctx := c.Request.Context()
	user, err := h.users.GetUser(ctx, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	messages := make([]*response.MessageInfo, 0)
	for m, err := range h.likes.LikesFor(ctx, user.ID) {
		if err != nil {
			response.FromError(c, err)
			return
		}
		messages = append(messages, response.FilterMessageInfo(m))
		if len(messages) == limit {
			break
		}
	}

	response.Success(c, gin.H{
		"user":     response.FilterUserInfo(user),
		"messages": messages,
	})
}

// actorUser 当前操作者对应的用户，匿名为nil
func actorUser(c *gin.Context) *model.User {
	return session.ActorFrom(c).User
}
