package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// 明文长度限制，bcrypt 只使用前72字节
const (
	MinLength = 6
	MaxLength = 50
)

// Cost bcrypt 计算成本，测试中可调低
var Cost = bcrypt.DefaultCost

// Hash 生成密码哈希
func Hash(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password is empty")
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify 校验密码，空哈希一律不通过
func Verify(plain, hash string) bool {
	if plain == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
