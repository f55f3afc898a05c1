package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"callos/internal/apperr"
	"callos/internal/audit"
	"callos/internal/rbac"
	"callos/internal/reporting"
	"callos/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// RespondError writes the {error:{code,message,details}} envelope for err.
// Anything that is not a coded engine error is logged and reported as INTERNAL.
func RespondError(c *gin.Context, err error) {
	if e, ok := apperr.As(err); ok {
		body := gin.H{"code": e.Code, "message": e.Error()}
		if len(e.Details) > 0 {
			body["details"] = e.Details
		}
		c.AbortWithStatusJSON(e.Status, gin.H{"error": body})
		return
	}
	switch {
	case errors.Is(err, reporting.ErrInvalidRequest), errors.Is(err, audit.ErrInvalidEvent):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(apperr.CodeValidation, err.Error()))
		return
	case errors.Is(err, rbac.ErrNoIdentity):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(apperr.CodeUnauthorized, "identity required"))
		return
	}
	logger.FromGin(c).Error("request failed", "err", err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(apperr.CodeInternal, "internal error"))
}

func errorBody(code, msg string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": msg}}
}

var validate = validator.New()

// bind decodes the JSON body into dst and runs struct validation.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, apperr.Validation("invalid json: %v", err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fieldMessage(fe))
			}
			RespondError(c, apperr.Validation("validation failed: %s", strings.Join(fields, "; ")).WithDetail("fields", fields))
			return false
		}
		RespondError(c, apperr.Validation("%v", err))
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// bindOptional is bind for endpoints whose body may be omitted entirely.
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bind(c, dst)
}
