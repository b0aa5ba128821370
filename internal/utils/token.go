package utils

import (
	"encoding/base32"
	"strings"

	"github.com/gorilla/securecookie"
)

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSessionID 返回 40 位小写 base32 随机串 (25 字节熵)
func GenerateSessionID() string {
	key := securecookie.GenerateRandomKey(25)
	if key == nil {
		panic("utils: system random source unavailable")
	}
	return strings.ToLower(tokenEncoding.EncodeToString(key))
}
