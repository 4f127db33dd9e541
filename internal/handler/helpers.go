package handlers

import (
	stderrors "errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"CityWatch/internal/models"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/i18n"
	"CityWatch/pkg/middleware"
	"CityWatch/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

func init() {
	// 校验错误使用 JSON 字段名
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	}
}

func (h *Handlers) dbFor(c *gin.Context) *gorm.DB {
	if db, ok := middleware.GetDB(c); ok {
		return db
	}
	return h.db.WithContext(c.Request.Context())
}

func pathID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.BadRequest("invalid id")
	}
	return uint(id), nil
}

// bindValues 请求体必须是 JSON 对象
func bindValues(c *gin.Context) (map[string]any, error) {
	vals := map[string]any{}
	if err := c.ShouldBindJSON(&vals); err != nil {
		return nil, errors.BadRequest("request body must be a JSON object")
	}
	return vals, nil
}

// fieldMessage 按请求语言输出校验提示
func fieldMessage(lang string, fe validator.FieldError) string {
	tr := i18n.Default()
	data := map[string]any{"Param": fe.Param(), "Tag": fe.Tag()}
	switch fe.Tag() {
	case "required", "required_if":
		return tr.T(lang, "validation.required", nil)
	case "oneof":
		data["Param"] = strings.ReplaceAll(fe.Param(), " ", ", ")
		return tr.T(lang, "validation.oneof", data)
	case "email", "url", "max", "min", "gte", "lte", "gtfield":
		return tr.T(lang, "validation."+fe.Tag(), data)
	}
	return tr.T(lang, "validation.other", data)
}

// fieldErrors 把校验错误转成 字段 -> 提示
func fieldErrors(c *gin.Context, err error) map[string]string {
	var ve validator.ValidationErrors
	if !stderrors.As(err, &ve) {
		return nil
	}
	lang := c.GetHeader("Accept-Language")
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fieldMessage(lang, fe)
	}
	return out
}

// bindJSON 绑定并校验请求体, 失败时已写入 400 响应
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		if details := fieldErrors(c, err); details != nil {
			response.Fail(c, "validation failed", details)
		} else {
			response.Fail(c, "invalid request body", nil)
		}
		return false
	}
	return true
}

func validateModel(c *gin.Context, vptr any) bool {
	if err := binding.Validator.ValidateStruct(vptr); err != nil {
		if details := fieldErrors(c, err); details != nil {
			response.Fail(c, "validation failed", details)
		} else {
			response.Fail(c, err.Error(), nil)
		}
		return false
	}
	return true
}

func actorOf(c *gin.Context) string {
	if u := models.CurrentUser(c); u != nil {
		return u.IDString()
	}
	return ""
}

// recordChanged 写入提交后发出通用变更信号
func (h *Handlers) recordChanged(c *gin.Context, resource, action string, vptr any) {
	h.sig.Emit(models.SigRecordChanged, &models.RecordEvent{
		Resource: resource,
		Action:   action,
		ID:       recordID(vptr),
		Actor:    actorOf(c),
		Record:   vptr,
	})
}

// emit 发出业务信号, 第一个参数固定为操作者
func (h *Handlers) emit(c *gin.Context, sig string, sender any, params ...any) {
	h.sig.Emit(sig, sender, append([]any{models.CurrentUser(c)}, params...)...)
}

func forbidden(msg string) error {
	return errors.WithCode(http.StatusForbidden, msg)
}
