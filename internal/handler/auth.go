package handlers

import (
	"context"
	"net/http"
	"time"

	"CityWatch/internal/models"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/logger"
	"CityWatch/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const (
	maxLoginFailures = 5
	loginLockWindow  = 15 * time.Minute
)

type loginForm struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type profileForm struct {
	DisplayName *string `json:"displayName" binding:"omitempty,max=128"`
	Phone       *string `json:"phone" binding:"omitempty,max=64"`
}

type passwordForm struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=72"`
}

func loginFailKey(email string) string {
	return "login:fail:" + email
}

// handleUserSignup 注册申请, 市民账号可自动通过
func (h *Handlers) handleUserSignup(c *gin.Context) {
	var form models.RegisterForm
	if !bindJSON(c, &form) {
		return
	}
	db := h.dbFor(c)
	pa, err := models.CreatePendingAccount(db, &form)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	h.recordChanged(c, models.ResPendingAccounts, models.ActionCreate, pa)

	if pa.Role == models.RoleCitizen && h.cfg.AutoApproveCitizen {
		user, pa, err := models.ApprovePendingAccount(db, pa.ID, "system")
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		h.recordChanged(c, models.ResUsers, models.ActionCreate, user)
		h.emit(c, models.SigAccountApproved, user)
		response.Created(c, "account created", gin.H{"user": user, "request": pa})
		return
	}
	h.emit(c, models.SigAccountRequested, pa)
	response.Created(c, "registration submitted for review", gin.H{"request": pa})
}

func (h *Handlers) handleUserSignin(c *gin.Context) {
	var form loginForm
	if !bindJSON(c, &form) {
		return
	}
	ctx := c.Request.Context()
	email := models.NormalizeEmail(form.Email)
	key := loginFailKey(email)

	if v, ok := h.cache.Get(ctx, key); ok && cast.ToInt64(v) >= maxLoginFailures {
		h.recordLogin("locked")
		response.AbortWithError(c, errors.Forbidden("too many failed attempts, try again later"))
		return
	}

	db := h.dbFor(c)
	user, err := models.GetUserByEmail(db, email)
	if err != nil && errors.HTTPStatus(err) != http.StatusNotFound {
		response.AbortWithError(c, err)
		return
	}
	if user == nil || !user.CheckPassword(form.Password) {
		h.loginFailed(ctx, key)
		response.AbortWithError(c, errors.Unauthorized("invalid email or password"))
		return
	}
	if !user.Active() {
		h.recordLogin("disabled")
		response.AbortWithError(c, errors.Forbidden("account disabled"))
		return
	}
	_ = h.cache.Delete(ctx, key)

	if err := h.auth.Login(c, user); err != nil {
		response.AbortWithError(c, errors.Internal(err))
		return
	}
	token, expires, err := h.auth.BuildAuthToken(user)
	if err != nil {
		response.AbortWithError(c, errors.Internal(err))
		return
	}
	if err := models.TouchLastLogin(db, user); err != nil {
		logger.Warn("update last login failed", zap.Uint("user", user.ID), zap.Error(err))
	}
	h.auth.Invalidate(user.ID)
	models.SetCurrentUser(c, user)
	h.recordLogin("success")
	response.Success(c, "login success", gin.H{
		"user":      user,
		"token":     token,
		"expiresAt": expires,
	})
}

func (h *Handlers) loginFailed(ctx context.Context, key string) {
	h.recordLogin("failure")
	if _, err := h.cache.Increment(ctx, key, 1, loginLockWindow); err != nil {
		logger.Warn("count login failure failed", zap.Error(err))
	}
}

func (h *Handlers) recordLogin(result string) {
	if h.metrics != nil {
		h.metrics.RecordLogin(result)
	}
}

func (h *Handlers) handleUserLogout(c *gin.Context) {
	if err := h.auth.Logout(c); err != nil {
		response.AbortWithError(c, errors.Internal(err))
		return
	}
	response.Success(c, "logout success", nil)
}

func (h *Handlers) handleUserInfo(c *gin.Context) {
	response.Success(c, "success", models.CurrentUser(c))
}

func (h *Handlers) handleUserUpdate(c *gin.Context) {
	var form profileForm
	if !bindJSON(c, &form) {
		return
	}
	user := *models.CurrentUser(c)
	vals := map[string]any{}
	if form.DisplayName != nil {
		user.DisplayName = *form.DisplayName
		vals["display_name"] = user.DisplayName
	}
	if form.Phone != nil {
		user.Phone = *form.Phone
		vals["phone"] = user.Phone
	}
	if len(vals) > 0 {
		if err := h.dbFor(c).Model(&user).Updates(vals).Error; err != nil {
			response.AbortWithError(c, errors.FromDB(err, "user"))
			return
		}
		h.auth.Invalidate(user.ID)
		h.recordChanged(c, models.ResUsers, models.ActionUpdate, &user)
	}
	response.Success(c, "profile updated", &user)
}

func (h *Handlers) handleChangePassword(c *gin.Context) {
	var form passwordForm
	if !bindJSON(c, &form) {
		return
	}
	user := *models.CurrentUser(c)
	if !user.CheckPassword(form.OldPassword) {
		response.AbortWithError(c, errors.BadRequest("old password is incorrect"))
		return
	}
	if err := models.UpdatePassword(h.dbFor(c), &user, form.NewPassword); err != nil {
		response.AbortWithError(c, err)
		return
	}
	h.auth.Invalidate(user.ID)
	response.Success(c, "password updated", nil)
}
