package models

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	constants "CityWatch/pkg/constant"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/response"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
)

const tokenIssuer = "citywatch"

type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth 会话与令牌认证, 用户信息经 LRU 缓存
type Auth struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	users  *expirable.LRU[uint, User]
}

func NewAuth(db *gorm.DB, secret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Auth{
		db:     db,
		secret: []byte(secret),
		ttl:    ttl,
		users:  expirable.NewLRU[uint, User](1024, nil, time.Minute),
	}
}

// BuildAuthToken 签发 HS256 令牌
func (a *Auth) BuildAuthToken(user *User) (string, time.Time, error) {
	expires := time.Now().Add(a.ttl)
	claims := AuthClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.IDString(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	return token, expires, err
}

func (a *Auth) ParseAuthToken(raw string) (uint, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return 0, errors.Unauthorized("invalid token")
	}
	id, ok := ParseID(claims.Subject)
	if !ok {
		return 0, errors.Unauthorized("invalid token subject")
	}
	return id, nil
}

// Login 写入会话
func (a *Auth) Login(c *gin.Context, user *User) error {
	session := sessions.Default(c)
	session.Set(constants.SessionUserKey, user.ID)
	return session.Save()
}

func (a *Auth) Logout(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}

// Invalidate 用户信息变更后清除缓存
func (a *Auth) Invalidate(id uint) {
	a.users.Remove(id)
}

func (a *Auth) loadUser(id uint) (*User, error) {
	if u, ok := a.users.Get(id); ok {
		return &u, nil
	}
	user, err := GetUserByID(a.db, id)
	if err != nil {
		if errors.HTTPStatus(err) == http.StatusNotFound {
			return nil, errors.Unauthorized("user no longer exists")
		}
		return nil, err
	}
	a.users.Add(id, *user)
	return user, nil
}

// identify 依次尝试会话、Bearer 令牌、token 查询参数
func (a *Auth) identify(c *gin.Context) (uint, error) {
	if v := sessions.Default(c).Get(constants.SessionUserKey); v != nil {
		switch id := v.(type) {
		case uint:
			return id, nil
		case string:
			if n, ok := ParseID(id); ok {
				return n, nil
			}
		}
	}
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return 0, errors.Unauthorized("malformed authorization header")
		}
		return a.ParseAuthToken(strings.TrimSpace(token))
	}
	if token := c.Query("token"); token != "" {
		return a.ParseAuthToken(token)
	}
	return 0, errors.Unauthorized("authentication required")
}

// AuthRequired 认证中间件
func (a *Auth) AuthRequired(c *gin.Context) {
	id, err := a.identify(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	user, err := a.loadUser(id)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	if !user.Active() {
		response.AbortWithError(c, errors.Forbidden("account disabled"))
		return
	}
	SetCurrentUser(c, user)
	c.Next()
}

func SetCurrentUser(c *gin.Context, user *User) {
	c.Set(constants.UserField, user)
	c.Set(constants.UserIDField, strconv.FormatUint(uint64(user.ID), 10))
	c.Set(constants.UsernameField, user.Email)
	c.Set(constants.RoleField, user.Role)
}

func CurrentUser(c *gin.Context) *User {
	if v, ok := c.Get(constants.UserField); ok {
		if u, ok := v.(*User); ok {
			return u
		}
	}
	return nil
}

// PermissionRequired 角色集合校验, 需放在 AuthRequired 之后
func PermissionRequired(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.AbortWithError(c, errors.Unauthorized("authentication required"))
			return
		}
		if !Can(user.Role, resource, action) {
			response.AbortWithError(c, errors.Forbidden("permission denied"))
			return
		}
		c.Next()
	}
}

func RoleRequired(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.AbortWithError(c, errors.Unauthorized("authentication required"))
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		response.AbortWithError(c, errors.Forbidden("permission denied"))
	}
}
