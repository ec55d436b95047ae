package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"codequery/internal/model"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ContextUserIDKey 是中间件写入已解析用户 ID 的上下文键。
const ContextUserIDKey = "userID"

// CurrentUserID 读取中间件解析出的用户 ID。匿名请求返回 false。
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// UserStore 用户持久化操作。
type UserStore interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Save(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]model.User, error)
}

// NewDBUserStore 创建基于 gorm 的 UserStore。
func NewDBUserStore(db *gorm.DB) UserStore {
	return dbUserStore{db: db}
}

type dbUserStore struct {
	db *gorm.DB
}

func (s dbUserStore) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s dbUserStore) Save(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

func (s dbUserStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&model.User{}, id).Error
}

func (s dbUserStore) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Handler 提供注册、登录与用户管理接口。
type Handler struct {
	store      UserStore
	tokens     *TokenService
	cookieName string
	logger     *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(store UserStore, tokens *TokenService, cookieName string, logger *slog.Logger) *Handler {
	return &Handler{
		store:      store,
		tokens:     tokens,
		cookieName: cookieName,
		logger:     logger,
	}
}

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type signinRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateUserRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

const genericErrMsg = "Something went wrong... Please try again"

// Signup 创建新用户并立即签发会话令牌。
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	username := strings.TrimSpace(req.Username)

	_, err := h.store.FindByUsername(c.Request.Context(), username)
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "User with username already exists"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	user := model.User{
		Name:     req.Name,
		Username: username,
		Password: string(hash),
	}
	if err := h.store.Create(c.Request.Context(), &user); err != nil {
		if h.logger != nil {
			h.logger.Error("create user failed", slog.String("username", username), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	if h.logger != nil {
		h.logger.Info("user registered", slog.String("username", username))
	}
	SetSessionCookie(c, h.cookieName, token, h.tokens.TTL())
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

// Signin 校验凭证并签发会话令牌。
func (h *Handler) Signin(c *gin.Context) {
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	user, err := h.store.FindByUsername(c.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User does not exist"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("sign token failed", slog.String("username", user.Username), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	if h.logger != nil {
		h.logger.Info("user logged in", slog.String("username", user.Username))
	}
	SetSessionCookie(c, h.cookieName, token, h.tokens.TTL())
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

// Signout 注销当前令牌并清除会话 Cookie。
func (h *Handler) Signout(c *gin.Context) {
	if token := ExtractToken(c, h.cookieName); token != "" {
		if err := h.tokens.Revoke(c.Request.Context(), token); err != nil && h.logger != nil {
			h.logger.Warn("revoke token failed", slog.String("error", err.Error()))
		}
	}
	ClearSessionCookie(c, h.cookieName)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Validate 返回当前令牌对应的用户。
// 令牌有效但用户已被删除时返回 401。
func (h *Handler) Validate(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized, User does not exist"})
		return
	}

	user, err := h.store.FindByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized, User does not exist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ListUsers 返回全部用户。
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// UpdateUser 更新用户资料（仅本人）。
//
// 校验顺序：用户存在 → 用户名未被他人占用 → 本人操作。
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ctx := c.Request.Context()

	user, err := h.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	if req.Username != "" {
		existing, err := h.store.FindByUsername(ctx, req.Username)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
			return
		}
		if existing != nil && existing.Username != user.Username {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Username already exists"})
			return
		}
	}

	actorID, ok := CurrentUserID(c)
	if !ok || actorID != user.ID {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Username != "" {
		user.Username = req.Username
	}

	if err := h.store.Save(ctx, user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteUser 删除用户并返回剩余用户列表。
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	ctx := c.Request.Context()

	if _, err := h.store.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	if err := h.store.Delete(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	users, err := h.store.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "message": "User deleted successfully"})
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
