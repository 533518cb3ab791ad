package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ByLCY/memeforge/apperr"
	"github.com/ByLCY/memeforge/caption"
	"github.com/ByLCY/memeforge/templates"
)

// errBadRequest 标记客户端参数错误。
var errBadRequest = errors.New("bad request")

var tagNameOnce sync.Once

// registerFormTagNames 让校验错误使用表单字段名（top_y）而不是结构体字段名（TopY）。
func registerFormTagNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
}

// validationMessage 把 validator 错误转换为可读的提示。
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request: " + err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		switch ve.Tag() {
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", ve.Field(), ve.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", ve.Field(), ve.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", ve.Field(), ve.Param()))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", ve.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", ve.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}

// statusFor 把错误类别映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, apperr.ErrNoImage):
		return http.StatusBadRequest
	case errors.Is(err, templates.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrImageDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, caption.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, apperr.ErrSuggestion):
		return http.StatusBadGateway
	case errors.Is(err, apperr.ErrUnsupportedCapability):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// respondError 写出 {"error": 用户提示, "detail": 具体原因}。
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := apperr.Message(err)
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		msg = validationMessage(verrs)
	case errors.Is(err, errBadRequest):
		msg = strings.TrimPrefix(err.Error(), errBadRequest.Error()+": ")
	case errors.Is(err, templates.ErrNotFound):
		msg = err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "detail": err.Error()})
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}
