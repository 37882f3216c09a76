package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskkeeper/internal/model"
	"taskkeeper/internal/pkg/notify"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	tokenTTL      = 7 * 24 * time.Hour // JWT 有效期
	resetTokenTTL = time.Hour          // 密码重置令牌有效期
)

// Handler 提供注册、登录与密码重置接口。
type Handler struct {
	db      *gorm.DB
	secret  []byte
	mailer  notify.Notifier
	baseURL string
	logger  *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(db *gorm.DB, jwtSecret string, baseURL string, mailer notify.Notifier, logger *slog.Logger) *Handler {
	return &Handler{
		db:      db,
		secret:  []byte(jwtSecret),
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type tokenResponse struct {
	Token  string `json:"token"`
	UserID uint   `json:"userId"`
}

// Register 创建新用户并直接签发 JWT。
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	var existing model.User
	err := h.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := model.User{
		Email:    email,
		Password: string(hash),
	}
	if err := h.db.Create(&user).Error; err != nil {
		if h.logger != nil {
			h.logger.Error("create user failed", slog.String("email", email), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	if h.logger != nil {
		h.logger.Info("user registered", slog.String("email", email))
	}
	c.JSON(http.StatusCreated, tokenResponse{Token: token, UserID: user.ID})
}

// Login 校验用户并返回 JWT。
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	var user model.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("sign token failed", slog.String("email", email), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	if h.logger != nil {
		h.logger.Info("user logged in", slog.String("email", email))
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token, UserID: user.ID})
}

// ForgotPassword 发起密码重置流程。
//
// 无论邮箱是否存在都返回 200，避免探测注册邮箱。
// 重新申请会覆盖旧令牌（旧链接随之失效）。
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	const okMessage = "if the email exists, a reset link has been sent"

	var user model.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusOK, gin.H{"message": okMessage})
		return
	}

	token, err := generateToken(32)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate token failed"})
		return
	}
	exp := time.Now().Add(resetTokenTTL)

	updates := map[string]interface{}{
		"reset_token_hash":       hashToken(token),
		"reset_token_expires_at": &exp,
	}
	if err := h.db.Model(&model.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		if h.logger != nil {
			h.logger.Error("save reset token failed", slog.String("email", email), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save reset token failed"})
		return
	}

	if h.mailer != nil {
		resetURL := fmt.Sprintf("%s/reset-password?token=%s", h.baseURL, token)
		if err := h.mailer.SendPasswordReset(c.Request.Context(), email, resetURL); err != nil {
			// 邮件失败不暴露给调用方，留给用户重新申请
			if h.logger != nil {
				h.logger.Warn("send reset email failed", slog.String("email", email), slog.String("error", err.Error()))
			}
		}
	}

	if h.logger != nil {
		h.logger.Info("password reset requested", slog.String("email", email))
	}
	c.JSON(http.StatusOK, gin.H{"message": okMessage})
}

// ResetPassword 用重置令牌设置新密码。
//
// 令牌一次性：使用后与过期时间一并清除。
func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user model.User
	err := h.db.Where("reset_token_hash = ?", hashToken(req.Token)).First(&user).Error
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	if user.ResetTokenExpiresAt == nil || time.Now().After(*user.ResetTokenExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	updates := map[string]interface{}{
		"password":               string(hash),
		"reset_token_hash":       "",
		"reset_token_expires_at": nil,
	}
	if err := h.db.Model(&model.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		if h.logger != nil {
			h.logger.Error("reset password failed", slog.String("email", user.Email), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset password failed"})
		return
	}

	if h.logger != nil {
		h.logger.Info("password reset completed", slog.String("email", user.Email))
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (h *Handler) issueToken(userID uint) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}

func generateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
