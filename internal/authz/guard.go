// Package authz 实现写操作前的鉴权决策
//
// 规则按顺序求值，第一条命中的规则决定结果：
//  1. 匿名用户：除公开浏览外一律拒绝（unauthenticated）
//  2. 删除/编辑消息：仅所有者允许（not owner）
//  3. 点赞：所有者拒绝（self-like），其他人允许
//  4. 取消点赞：允许
//  5. 修改资料：目标为本人且密码重新校验通过（not self / bad credential）
//  6. 发布消息：允许
package authz

import (
	"warbler/internal/model"
	"warbler/pkg/metrics"
)

// Action 受保护的操作
type Action string

const (
	ActionView          Action = "view"
	ActionCreateMessage Action = "create-message"
	ActionDeleteMessage Action = "delete-message"
	ActionEditMessage   Action = "edit-message"
	ActionLikeMessage   Action = "like-message"
	ActionUnlikeMessage Action = "unlike-message"
	ActionEditProfile   Action = "edit-profile"
)

// 拒绝原因，仅用于日志与指标
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonNotOwner        = "not owner"
	ReasonSelfLike        = "self-like"
	ReasonNotSelf         = "not self"
	ReasonBadCredential   = "bad credential"
	ReasonUnknownAction   = "unknown action"
)

// Decision 鉴权结果
type Decision struct {
	Allowed bool
	Reason  string

	proof CredentialProof
}

// CredentialProof 修改资料时密码已通过校验的凭证，只能由 Guard 签发
// 零值不证明任何事
type CredentialProof struct {
	userID uint
	hash   string
}

// Proof 返回本次决策签发的密码凭证，未校验密码时为零值
func (d Decision) Proof() CredentialProof {
	return d.proof
}

// Covers 凭证是否对应该用户当前的密码
// 密码在校验后被修改时凭证失效
func (p CredentialProof) Covers(user *model.User) bool {
	return user != nil && p.userID != 0 && p.userID == user.ID && p.hash != "" && p.hash == user.PasswordHash
}

func Allow() Decision { return Decision{Allowed: true} }

func Deny(reason string) Decision { return Decision{Reason: reason} }

// Err 将拒绝转换为业务错误，允许时返回nil
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonBadCredential {
		return model.ErrIncorrectPassword
	}
	return model.NewUnauthorizedError(d.Reason)
}

// Target 操作目标，按动作填写其中之一
type Target struct {
	Message    *model.Message // 消息类动作；nil 表示消息不存在
	User       *model.User    // 修改资料的目标用户
	Credential string         // 修改资料时提交的当前密码
}

// CredentialVerifier 密码校验能力，由 UserService 实现
type CredentialVerifier interface {
	VerifyCredential(user *model.User, plain string) bool
}

// Guard 鉴权器，无状态，可并发使用
type Guard struct {
	verifier CredentialVerifier
}

func NewGuard(verifier CredentialVerifier) *Guard {
	return &Guard{verifier: verifier}
}

// Authorize 对 actor 执行 action 作用于 target 做出决策
// actor 为nil表示匿名
func (g *Guard) Authorize(actor *model.User, action Action, target Target) Decision {
	d := g.decide(actor, action, target)
	metrics.ObserveDecision(string(action), d.Allowed)
	return d
}

func (g *Guard) decide(actor *model.User, action Action, target Target) Decision {
	if actor == nil {
		if action == ActionView {
			return Allow()
		}
		return Deny(ReasonUnauthenticated)
	}

	switch action {
	case ActionView:
		return Allow()

	case ActionDeleteMessage, ActionEditMessage:
		// 消息不存在与非所有者返回相同结果
		if target.Message.OwnedBy(actor.ID) {
			return Allow()
		}
		return Deny(ReasonNotOwner)

	case ActionLikeMessage:
		if target.Message.OwnedBy(actor.ID) {
			return Deny(ReasonSelfLike)
		}
		return Allow()

	case ActionUnlikeMessage:
		return Allow()

	case ActionEditProfile:
		if target.User == nil || target.User.ID != actor.ID {
			return Deny(ReasonNotSelf)
		}
		if g.verifier == nil || !g.verifier.VerifyCredential(target.User, target.Credential) {
			return Deny(ReasonBadCredential)
		}
		d := Allow()
		d.proof = CredentialProof{userID: target.User.ID, hash: target.User.PasswordHash}
		return d

	case ActionCreateMessage:
		return Allow()

	default:
		return Deny(ReasonUnknownAction)
	}
}
