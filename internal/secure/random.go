package secure

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// Source 密码学随机数来源
type Source interface {
	// Token 生成 n 字节随机数的 base64url 编码（无填充）
	Token(n int) (string, error)
	// Digits 生成 n 位十进制数字串，每位独立均匀分布
	Digits(n int) (string, error)
}

// CryptoSource 基于 crypto/rand 的随机源
type CryptoSource struct {
	// Reader 为空时使用 crypto/rand.Reader
	Reader io.Reader
}

// NewCryptoSource 创建默认随机源
func NewCryptoSource() *CryptoSource {
	return &CryptoSource{Reader: rand.Reader}
}

func (s *CryptoSource) reader() io.Reader {
	if s == nil || s.Reader == nil {
		return rand.Reader
	}
	return s.Reader
}

// Token 生成随机令牌
func (s *CryptoSource) Token(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid token size: %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.reader(), buf); err != nil {
		return "", fmt.Errorf("read random bytes failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Digits 生成定长数字码（允许前导 0）
func (s *CryptoSource) Digits(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid digits length: %d", n)
	}
	var b strings.Builder
	b.Grow(n)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(s.reader(), ten)
		if err != nil {
			return "", fmt.Errorf("read random digit failed: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// IsDigits 判断字符串是否为定长纯数字
func IsDigits(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
