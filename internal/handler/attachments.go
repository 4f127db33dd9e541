package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"CityWatch/internal/models"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/logger"
	"CityWatch/pkg/response"
	stores "CityWatch/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 可挂附件的资源
var attachmentParents = []string{models.ResCrimes, models.ResIncidents}

func (h *Handlers) registerAttachmentRoutes(r *gin.RouterGroup, objs map[string]*WebObject) {
	for _, res := range attachmentParents {
		obj := objs[res]
		if obj == nil {
			continue
		}
		g := r.Group(obj.Name)
		g.POST("/:id/attachments", models.PermissionRequired(res, models.ActionUpdate), h.handleUploadAttachment(obj))
		g.GET("/:id/attachments", models.PermissionRequired(res, models.ActionRead), h.handleListAttachments(obj))
	}

	attachments := r.Group("attachments")
	{
		attachments.GET("/:id", h.handleDownloadAttachment(objs))

		attachments.DELETE("/:id", models.PermissionRequired(models.ResAttachments, models.ActionDelete), h.handleDeleteAttachment)
	}
}

func (h *Handlers) requireStore(c *gin.Context) bool {
	if h.store == nil {
		response.AbortWithError(c, errors.Unavailable("attachment storage is not configured"))
		return false
	}
	return true
}

func (h *Handlers) handleUploadAttachment(obj *WebObject) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.requireStore(c) {
			return
		}
		vptr, err := h.loadScoped(c, obj, models.ActionUpdate)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		parentID := recordID(vptr)

		limit := int64(h.cfg.MaxUploadMB) << 20
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if stderrors.As(err, &tooLarge) {
				response.Fail(c, fmt.Sprintf("file exceeds %d MB", h.cfg.MaxUploadMB), nil)
				return
			}
			response.Fail(c, "multipart field \"file\" is required", nil)
			return
		}
		defer file.Close()

		name := filepath.Base(header.Filename)
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		key := fmt.Sprintf("%s/%d/%s%s", obj.Resource, parentID, uuid.NewString(), strings.ToLower(filepath.Ext(name)))
		ctx := c.Request.Context()
		if err := h.store.Write(ctx, key, file, header.Size, contentType); err != nil {
			response.AbortWithError(c, errors.Wrapf(err, "store attachment %s failed", name))
			return
		}

		a := &models.Attachment{
			Resource:    obj.Resource,
			ResourceID:  parentID,
			FileName:    name,
			ContentType: contentType,
			Size:        header.Size,
			StorageKey:  key,
			UploadedBy:  actorOf(c),
		}
		if err := h.dbFor(c).Create(a).Error; err != nil {
			_ = h.store.Delete(ctx, key)
			response.AbortWithError(c, errors.FromDB(err, "attachment"))
			return
		}
		h.recordChanged(c, models.ResAttachments, models.ActionCreate, a)
		response.Created(c, "attachment uploaded", a)
	}
}

func (h *Handlers) handleListAttachments(obj *WebObject) gin.HandlerFunc {
	return func(c *gin.Context) {
		vptr, err := h.loadScoped(c, obj, models.ActionRead)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		items, err := models.ListAttachments(h.dbFor(c), obj.Resource, recordID(vptr))
		if err != nil {
			response.AbortWithError(c, errors.FromDB(err, "attachment"))
			return
		}
		response.Success(c, "ok", items)
	}
}

// handleDownloadAttachment 需要对所属记录有读权限
func (h *Handlers) handleDownloadAttachment(objs map[string]*WebObject) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.requireStore(c) {
			return
		}
		id, err := pathID(c)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		a, err := models.GetAttachment(h.dbFor(c), id)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		parent := objs[a.Resource]
		user := models.CurrentUser(c)
		if parent == nil || !models.Can(user.Role, parent.Resource, models.ActionRead) {
			response.AbortWithError(c, forbidden("permission denied"))
			return
		}
		if err := h.scopedDB(c, parent, models.ActionRead).First(parent.newPtr(), a.ResourceID).Error; err != nil {
			response.AbortWithError(c, errors.FromDB(err, "attachment"))
			return
		}

		rc, size, err := h.store.Read(c.Request.Context(), a.StorageKey)
		if err != nil {
			if stderrors.Is(err, stores.ErrNotFound) {
				response.AbortWithError(c, errors.NotFound("attachment file missing"))
				return
			}
			response.AbortWithError(c, errors.Wrapf(err, "read attachment %d failed", a.ID))
			return
		}
		defer rc.Close()
		c.DataFromReader(http.StatusOK, size, a.ContentType, rc, map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", a.FileName),
		})
	}
}

func (h *Handlers) handleDeleteAttachment(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	db := h.dbFor(c)
	a, err := models.GetAttachment(db, id)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	if err := db.Delete(a).Error; err != nil {
		response.AbortWithError(c, errors.FromDB(err, "attachment"))
		return
	}
	if h.store != nil {
		if err := h.store.Delete(c.Request.Context(), a.StorageKey); err != nil && !stderrors.Is(err, stores.ErrNotFound) {
			logger.Warn("delete attachment blob failed", zap.String("key", a.StorageKey), zap.Error(err))
		}
	}
	h.recordChanged(c, models.ResAttachments, models.ActionDelete, a)
	response.Success(c, "attachment deleted", nil)
}
