package response

import (
	"errors"
	"net/http"

	"warbler/internal/model"
	"warbler/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`            // 状态码：0表示成功，其他与HTTP状态码一致
	Message string      `json:"message"`         // 响应消息
	Field   string      `json:"field,omitempty"` // 校验失败的字段
	Data    interface{} `json:"data,omitempty"`  // 响应数据
	Error   string      `json:"error,omitempty"` // 错误详情（仅在开发环境显示）
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// Created 创建成功
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应，HTTP状态码与 code 一致
func Error(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 400错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401错误，所有鉴权拒绝使用同一提示
func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, model.AccessUnauthorized)
}

// NotFound 404错误
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError 500错误
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// FromError 按错误分类输出响应
func FromError(c *gin.Context, err error) {
	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		appErr = model.NewInternalError(err)
	}

	switch appErr.Kind {
	case model.KindValidation:
		c.AbortWithStatusJSON(http.StatusBadRequest, Response{
			Code:    http.StatusBadRequest,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
	case model.KindUnauthorized:
		logger.Info("访问被拒绝",
			zap.String("path", c.FullPath()),
			zap.Uint("user_id", c.GetUint(logger.ContextUserIDKey)),
			zap.String("reason", appErr.Reason),
		)
		message := model.AccessUnauthorized
		if appErr == model.ErrIncorrectPassword {
			message = appErr.Message
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
			Code:    http.StatusUnauthorized,
			Message: message,
			Field:   appErr.Field,
		})
	case model.KindNotFound:
		NotFound(c, appErr.Message)
	default:
		logger.Error("请求处理失败", zap.String("path", c.FullPath()), zap.Error(appErr))
		resp := Response{Code: http.StatusInternalServerError, Message: appErr.Message}
		// 在开发环境下显示错误详情
		if gin.Mode() == gin.DebugMode && appErr.Err != nil {
			resp.Error = appErr.Err.Error()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
	}
}

// UserInfo 用户信息（隐藏敏感字段）
type UserInfo struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ImageURL       string `json:"image_url"`
	HeaderImageURL string `json:"header_image_url"`
	Bio            string `json:"bio"`
}

// FilterUserInfo 过滤用户信息，隐藏敏感字段
func FilterUserInfo(user *model.User) *UserInfo {
	if user == nil {
		return nil
	}

	return &UserInfo{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		ImageURL:       user.ImageURL,
		HeaderImageURL: user.HeaderImageURL,
		Bio:            user.Bio,
	}
}

// LoginResponse 登录响应
type LoginResponse struct {
	User         *UserInfo `json:"user"`
	SessionToken string    `json:"session_token"`
	CSRFToken    string    `json:"csrf_token"`
}

// MessageInfo 消息响应
type MessageInfo struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	UserID    uint   `json:"user_id"`
	LikeCount *int64 `json:"like_count,omitempty"`
	Liked     *bool  `json:"liked,omitempty"` // 当前用户是否已点赞，匿名时不返回
	CreatedAt string `json:"created_at"`
}

// FilterMessageInfo 转换消息响应
func FilterMessageInfo(message *model.Message) *MessageInfo {
	if message == nil {
		return nil
	}

	return &MessageInfo{
		ID:        message.ID,
		Text:      message.Text,
		UserID:    message.UserID,
		CreatedAt: message.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
