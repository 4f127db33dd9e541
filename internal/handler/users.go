package handlers

import (
	"CityWatch/internal/models"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/response"

	"github.com/gin-gonic/gin"
)

type resetPasswordForm struct {
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type reviewForm struct {
	Note string `json:"note" binding:"max=512"`
}

func (h *Handlers) registerUserRoutes(r *gin.RouterGroup) {
	users := r.Group("users")
	{
		users.PUT("/:id/password", models.PermissionRequired(models.ResUsers, models.ActionUpdate), h.handleResetPassword)
	}
}

func (h *Handlers) registerPendingAccountRoutes(r *gin.RouterGroup) {
	pending := r.Group("pending-accounts", models.PermissionRequired(models.ResPendingAccounts, models.ActionUpdate))
	{
		pending.POST("/:id/approve", h.handleApproveAccount)

		pending.POST("/:id/reject", h.handleRejectAccount)
	}
}

// handleResetPassword 管理员重置密码
func (h *Handlers) handleResetPassword(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	var form resetPasswordForm
	if !bindJSON(c, &form) {
		return
	}
	db := h.dbFor(c)
	user, err := models.GetUserByID(db, id)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	if err := models.UpdatePassword(db, user, form.Password); err != nil {
		response.AbortWithError(c, err)
		return
	}
	h.auth.Invalidate(user.ID)
	response.Success(c, "password reset", gin.H{"id": user.ID})
}

func (h *Handlers) handleApproveAccount(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	user, pa, err := models.ApprovePendingAccount(h.dbFor(c), id, actorOf(c))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	h.recordChanged(c, models.ResPendingAccounts, models.ActionUpdate, pa)
	h.recordChanged(c, models.ResUsers, models.ActionCreate, user)
	h.emit(c, models.SigAccountApproved, user)
	response.Success(c, "account approved", gin.H{"user": user, "request": pa})
}

func (h *Handlers) handleRejectAccount(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	var form reviewForm
	if c.Request.ContentLength != 0 && !bindJSON(c, &form) {
		return
	}
	pa, err := models.RejectPendingAccount(h.dbFor(c), id, actorOf(c), form.Note)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	h.recordChanged(c, models.ResPendingAccounts, models.ActionUpdate, pa)
	response.Success(c, "account rejected", pa)
}

// loadVisible 按授权范围读取一条记录
func (h *Handlers) loadVisible(c *gin.Context, resource, action, ownerColumn string, out any) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	db := h.dbFor(c)
	user := models.CurrentUser(c)
	if ownerColumn != "" && models.Access(user.Role, resource, action) == models.GrantOwn {
		db = db.Where(ownerColumn+" = ?", user.IDString())
	}
	if err := db.First(out, id).Error; err != nil {
		return errors.FromDB(err, singular(resource))
	}
	return nil
}
