package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"CityWatch/internal/models"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// WebObject 声明式资源, 字段名均使用 JSON 名称
type WebObject struct {
	Name        string // 路由段
	Resource    string // 权限资源
	Desc        string
	Model       any
	Filterables []string
	Editables   []string
	Searchables []string
	Orderables  []string
	Requireds   []string
	// OwnerField 授权范围为 GrantOwn 时用于过滤的字段
	OwnerField string
	// Methods 为空时注册全部 CRUD 路由
	Methods []string

	GetDB        func(c *gin.Context, isCreate bool) *gorm.DB
	BeforeCreate func(db *gorm.DB, c *gin.Context, vptr any, vals map[string]any) error
	BeforeUpdate func(db *gorm.DB, c *gin.Context, old, vptr any, vals map[string]any) error
	BeforeDelete func(db *gorm.DB, c *gin.Context, vptr any) error
	AfterWrite   func(c *gin.Context, action string, old, vptr any)

	modelType reflect.Type
	columns   map[string]string // JSON 名 -> 列名
}

var schemaCache = &sync.Map{}

// Build 解析模型结构
func (obj *WebObject) Build(db *gorm.DB) error {
	sch, err := schema.Parse(obj.Model, schemaCache, db.NamingStrategy)
	if err != nil {
		return fmt.Errorf("parse %s: %w", obj.Name, err)
	}
	obj.modelType = sch.ModelType
	obj.columns = map[string]string{}
	for _, f := range sch.Fields {
		if f.DBName == "" {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		obj.columns[name] = f.DBName
	}
	for _, group := range [][]string{obj.Filterables, obj.Searchables, obj.Orderables} {
		for _, f := range group {
			if _, ok := obj.columns[f]; !ok {
				return fmt.Errorf("%s: unknown field %q", obj.Name, f)
			}
		}
	}
	if obj.OwnerField != "" {
		if _, ok := obj.columns[obj.OwnerField]; !ok {
			return fmt.Errorf("%s: unknown owner field %q", obj.Name, obj.OwnerField)
		}
	}
	return nil
}

func (obj *WebObject) allows(method string) bool {
	if len(obj.Methods) == 0 {
		return true
	}
	for _, m := range obj.Methods {
		if m == method {
			return true
		}
	}
	return false
}

func (obj *WebObject) newPtr() any {
	return reflect.New(obj.modelType).Interface()
}

func (obj *WebObject) clone(vptr any) any {
	out := reflect.New(obj.modelType)
	out.Elem().Set(reflect.ValueOf(vptr).Elem())
	return out.Interface()
}

// filter 只保留可编辑字段
func (obj *WebObject) filter(vals map[string]any) map[string]any {
	out := make(map[string]any, len(obj.Editables))
	for _, k := range obj.Editables {
		if v, ok := vals[k]; ok {
			out[k] = v
		}
	}
	return out
}

func recordID(vptr any) uint {
	v := reflect.Indirect(reflect.ValueOf(vptr)).FieldByName("ID")
	if !v.IsValid() {
		return 0
	}
	return uint(v.Uint())
}

func decodeInto(vals map[string]any, vptr any) error {
	data, err := json.Marshal(vals)
	if err != nil {
		return errors.BadRequest("invalid body")
	}
	if err := json.Unmarshal(data, vptr); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return errors.WithCodef(http.StatusBadRequest, "invalid value for field %s", te.Field)
		}
		return errors.WithCodef(http.StatusBadRequest, "invalid body: %v", err)
	}
	return nil
}

// scopedDB 按调用者的授权范围过滤
func (h *Handlers) scopedDB(c *gin.Context, obj *WebObject, action string) *gorm.DB {
	var db *gorm.DB
	if obj.GetDB != nil {
		db = obj.GetDB(c, action == models.ActionCreate)
	} else {
		db = h.dbFor(c)
	}
	user := models.CurrentUser(c)
	if user != nil && obj.OwnerField != "" && models.Access(user.Role, obj.Resource, action) == models.GrantOwn {
		db = db.Where(clause.Eq{Column: clause.Column{Name: obj.columns[obj.OwnerField]}, Value: user.IDString()})
	}
	return db
}

// loadScoped 读取一条可见的记录, 不可见与不存在都返回 404
func (h *Handlers) loadScoped(c *gin.Context, obj *WebObject, action string) (any, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}
	vptr := obj.newPtr()
	if err := h.scopedDB(c, obj, action).First(vptr, id).Error; err != nil {
		return nil, errors.FromDB(err, singular(obj.Resource))
	}
	return vptr, nil
}

func (h *Handlers) registerObject(r *gin.RouterGroup, obj *WebObject) {
	g := r.Group(obj.Name)
	if obj.allows(models.ActionList) {
		g.GET("", models.PermissionRequired(obj.Resource, models.ActionList), h.objList(obj))
	}
	if obj.allows(models.ActionCreate) {
		g.POST("", models.PermissionRequired(obj.Resource, models.ActionCreate), h.objCreate(obj))
	}
	if obj.allows(models.ActionRead) {
		g.GET("/:id", models.PermissionRequired(obj.Resource, models.ActionRead), h.objGet(obj))
	}
	if obj.allows(models.ActionUpdate) {
		g.PUT("/:id", models.PermissionRequired(obj.Resource, models.ActionUpdate), h.objUpdate(obj))
	}
	if obj.allows(models.ActionDelete) {
		g.DELETE("/:id", models.PermissionRequired(obj.Resource, models.ActionDelete), h.objDelete(obj))
	}
}

type ListResult struct {
	Items    any   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

func (h *Handlers) objList(obj *WebObject) gin.HandlerFunc {
	return func(c *gin.Context) {
		db := h.scopedDB(c, obj, models.ActionList).Model(obj.newPtr())

		for _, f := range obj.Filterables {
			if v, ok := c.GetQuery(f); ok && v != "" {
				db = db.Where(clause.Eq{Column: clause.Column{Name: obj.columns[f]}, Value: v})
			}
		}
		if q := strings.TrimSpace(c.Query("q")); q != "" && len(obj.Searchables) > 0 {
			like := "%" + strings.ToLower(q) + "%"
			conds := make([]string, 0, len(obj.Searchables))
			args := make([]any, 0, len(obj.Searchables))
			for _, f := range obj.Searchables {
				conds = append(conds, "LOWER("+h.db.Statement.Quote(obj.columns[f])+") LIKE ?")
				args = append(args, like)
			}
			db = db.Where(strings.Join(conds, " OR "), args...)
		}
		for param, op := range map[string]string{"from": ">=", "to": "<="} {
			v := c.Query(param)
			if v == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				response.Fail(c, fmt.Sprintf("%s must be an RFC 3339 timestamp", param), nil)
				return
			}
			db = db.Where("created_at "+op+" ?", t)
		}

		order := clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}
		if o := c.Query("order"); o != "" {
			desc := strings.HasPrefix(o, "-")
			field := strings.TrimPrefix(o, "-")
			col, ok := obj.columns[field]
			if !ok || !(field == "id" || field == "createdAt" || contains(obj.Orderables, field)) {
				response.Fail(c, "cannot order by "+field, nil)
				return
			}
			order = clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc}
		}

		page := cast.ToInt(c.Query("page"))
		if page < 1 {
			page = 1
		}
		pageSize := cast.ToInt(c.Query("pageSize"))
		if pageSize <= 0 {
			pageSize = defaultPageSize
		}
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		base := db.Session(&gorm.Session{})
		var total int64
		if err := base.Count(&total).Error; err != nil {
			response.AbortWithError(c, errors.Internal(err))
			return
		}
		items := reflect.New(reflect.SliceOf(obj.modelType))
		items.Elem().Set(reflect.MakeSlice(reflect.SliceOf(obj.modelType), 0, 0))
		if err := base.Order(order).Offset((page - 1) * pageSize).Limit(pageSize).Find(items.Interface()).Error; err != nil {
			response.AbortWithError(c, errors.Internal(err))
			return
		}
		response.Success(c, "success", ListResult{
			Items:    items.Elem().Interface(),
			Total:    total,
			Page:     page,
			PageSize: pageSize,
		})
	}
}

func (h *Handlers) objGet(obj *WebObject) gin.HandlerFunc {
	return func(c *gin.Context) {
		vptr, err := h.loadScoped(c, obj, models.ActionRead)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		response.Success(c, "success", vptr)
	}
}

func (h *Handlers) objCreate(obj *WebObject) gin.HandlerFunc {
	return func(c *gin.Context) {
		vals, err := bindValues(c)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		vals = obj.filter(vals)
		for _, f := range obj.Requireds {
			if v, ok := vals[f]; !ok || v == nil || v == "" {
				response.Fail(c, "validation failed", map[string]string{f: "is required"})
				return
			}
		}
		vptr := obj.newPtr()
		if err := decodeInto(vals, vptr); err != nil {
			response.AbortWithError(c, err)
			return
		}
		db := h.dbFor(c)
		if obj.BeforeCreate != nil {
			if err := obj.BeforeCreate(db, c, vptr, vals); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		if !validateModel(c, vptr) {
			return
		}
		if err := db.Create(vptr).Error; err != nil {
			response.AbortWithError(c, errors.FromDB(err, singular(obj.Resource)))
			return
		}
		h.recordChanged(c, obj.Resource, models.ActionCreate, vptr)
		if obj.AfterWrite != nil {
			obj.AfterWrite(c, models.ActionCreate, nil, vptr)
		}
		response.Created(c, singular(obj.Resource)+" created", vptr)
	}
}

func (h *Handlers) objUpdate(obj *WebObject) gin.HandlerFunc {
	return func(c *gin.Context) {
		vptr, err := h.loadScoped(c, obj, models.ActionUpdate)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		vals, err := bindValues(c)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		vals = obj.filter(vals)
		old := obj.clone(vptr)
		if err := decodeInto(vals, vptr); err != nil {
			response.AbortWithError(c, err)
			return
		}
		db := h.dbFor(c)
		if obj.BeforeUpdate != nil {
			if err := obj.BeforeUpdate(db, c, old, vptr, vals); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		if !validateModel(c, vptr) {
			return
		}
		if err := db.Save(vptr).Error; err != nil {
			response.AbortWithError(c, errors.FromDB(err, singular(obj.Resource)))
			return
		}
		h.recordChanged(c, obj.Resource, models.ActionUpdate, vptr)
		if obj.AfterWrite != nil {
			obj.AfterWrite(c, models.ActionUpdate, old, vptr)
		}
		response.Success(c, singular(obj.Resource)+" updated", vptr)
	}
}

func (h *Handlers) objDelete(obj *WebObject) gin.HandlerFunc {
	return func(c *gin.Context) {
		vptr, err := h.loadScoped(c, obj, models.ActionDelete)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		db := h.dbFor(c)
		if obj.BeforeDelete != nil {
			if err := obj.BeforeDelete(db, c, vptr); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		if err := db.Delete(vptr).Error; err != nil {
			response.AbortWithError(c, errors.FromDB(err, singular(obj.Resource)))
			return
		}
		h.recordChanged(c, obj.Resource, models.ActionDelete, vptr)
		if obj.AfterWrite != nil {
			obj.AfterWrite(c, models.ActionDelete, vptr, nil)
		}
		response.Success(c, singular(obj.Resource)+" deleted", gin.H{"id": recordID(vptr)})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// singular 资源名转成单数用于提示信息
func singular(resource string) string {
	switch resource {
	case models.ResFeedback:
		return "feedback"
	case models.ResStaffSchedules:
		return "schedule"
	case models.ResOperationLogs:
		return "operation log"
	}
	s := strings.ReplaceAll(resource, "_", " ")
	return strings.TrimSuffix(s, "s")
}
