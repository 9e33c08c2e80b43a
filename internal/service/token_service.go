package service

import (
	"strings"
	"time"

	"github.com/stampcard-next/internal/config"
	"github.com/stampcard-next/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenExpireHours = 24

// UserJWTClaims 顾客 JWT 声明
type UserJWTClaims struct {
	UserID       uint   `json:"user_id"`
	Email        string `json:"email"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// StaffJWTClaims 店员 JWT 声明
type StaffJWTClaims struct {
	StaffID      uint   `json:"staff_id"`
	BusinessID   uint   `json:"business_id"`
	Username     string `json:"username"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// TokenService 顾客与店员令牌的签发与校验
// 正式环境令牌由身份服务签发，签发方法供种子命令与测试使用
type TokenService struct {
	userCfg  config.JWTConfig
	staffCfg config.JWTConfig
}

// NewTokenService 创建令牌服务
func NewTokenService(userCfg, staffCfg config.JWTConfig) *TokenService {
	return &TokenService{userCfg: userCfg, staffCfg: staffCfg}
}

// GenerateUserJWT 生成顾客 JWT
func (s *TokenService) GenerateUserJWT(user *models.User, now time.Time) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, ErrInvalidInput
	}
	claims := UserJWTClaims{
		UserID:       user.ID,
		Email:        user.Email,
		TokenVersion: user.TokenVersion,
	}
	expiresAt := now.Add(resolveTokenExpire(s.userCfg))
	claims.RegisteredClaims = registeredClaims(now, expiresAt)
	token, err := sign(s.userCfg, claims)
	return token, expiresAt, err
}

// ParseUserJWT 校验顾客 JWT
func (s *TokenService) ParseUserJWT(tokenString string) (*UserJWTClaims, error) {
	claims := &UserJWTClaims{}
	if err := parse(s.userCfg, tokenString, claims); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// GenerateStaffJWT 生成店员 JWT
func (s *TokenService) GenerateStaffJWT(staff *models.Staff, now time.Time) (string, time.Time, error) {
	if staff == nil {
		return "", time.Time{}, ErrInvalidInput
	}
	claims := StaffJWTClaims{
		StaffID:      staff.ID,
		BusinessID:   staff.BusinessID,
		Username:     staff.Username,
		TokenVersion: staff.TokenVersion,
	}
	expiresAt := now.Add(resolveTokenExpire(s.staffCfg))
	claims.RegisteredClaims = registeredClaims(now, expiresAt)
	token, err := sign(s.staffCfg, claims)
	return token, expiresAt, err
}

// ParseStaffJWT 校验店员 JWT
func (s *TokenService) ParseStaffJWT(tokenString string) (*StaffJWTClaims, error) {
	claims := &StaffJWTClaims{}
	if err := parse(s.staffCfg, tokenString, claims); err != nil {
		return nil, err
	}
	if claims.StaffID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func registeredClaims(now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}

func resolveTokenExpire(cfg config.JWTConfig) time.Duration {
	hours := cfg.ExpireHours
	if hours <= 0 {
		hours = defaultTokenExpireHours
	}
	return time.Duration(hours) * time.Hour
}

func sign(cfg config.JWTConfig, claims jwt.Claims) (string, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return "", ErrTokenSecretMissing
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parse(cfg config.JWTConfig, tokenString string, claims jwt.Claims) error {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return ErrTokenSecretMissing
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
