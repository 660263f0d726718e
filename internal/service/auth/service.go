package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/config"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/repository"
)

const minPasswordLength = 6

// Service 认证服务
type Service struct {
	repo   *repository.Repositories
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService 创建认证服务
// 未配置密钥时生成随机密钥，重启后旧令牌失效
func NewService(repo *repository.Repositories, cfg config.AuthConfig) (*Service, error) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		randomBytes := make([]byte, 32)
		if _, err := rand.Read(randomBytes); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		secret = base64.StdEncoding.EncodeToString(randomBytes)
	}
	ttl := time.Duration(cfg.TokenTTL) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{repo: repo, secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL 令牌有效期
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// LoginRequest 登录请求
// 管理员的 experimentId 为空且必须提供密码
type LoginRequest struct {
	Username     string `json:"username" binding:"required"`
	Password     string `json:"userPassword"`
	ExperimentID string `json:"experimentId"`
}

// Login 用户登录
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*model.User, string, error) {
	user, err := s.repo.User.FindByUsername(ctx, req.ExperimentID, req.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, "", apperr.Unauthorized("invalid username or password")
	}
	if user.IsAdmin || user.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			return nil, "", apperr.Unauthorized("invalid username or password")
		}
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// CreateAdmin 创建管理员账号
func (s *Service) CreateAdmin(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.Validation("username is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	existing, err := s.repo.User.FindByUsername(ctx, "", username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("user %s already exists", username)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &model.User{
		Username:     username,
		IsAdmin:      true,
		PasswordHash: string(hashedPassword),
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	return user, nil
}

// IssueToken 签发访问令牌
func (s *Service) IssueToken(user *model.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"admin":   user.IsAdmin,
		"exp":     now.Add(s.ttl).Unix(),
		"iat":     now.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ParseToken 校验令牌并返回用户 ID
func (s *Service) ParseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", apperr.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.Unauthorized("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", apperr.Unauthorized("invalid user ID in token")
	}
	return userID, nil
}

// Authenticate 校验令牌并加载用户
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*model.User, error) {
	userID, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("user no longer exists")
		}
		return nil, err
	}
	return user, nil
}

// Refresh 校验旧令牌并签发新令牌
func (s *Service) Refresh(ctx context.Context, tokenString string) (*model.User, string, error) {
	user, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return nil, "", err
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
