package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"pharmapos/internal/apierror"
	"pharmapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// lockRetryAfter is the Retry-After hint, in seconds, sent with LockTimeout.
const lockRetryAfter = "1"

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithKind(string(service.KindValidation), "Invalid JSON: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, filter interface{}) bool {
	if err := c.ShouldBindQuery(filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithKind(string(service.KindValidation), err.Error()))
		return false
	}
	return runValidation(c, filter)
}

func runValidation(c *gin.Context, v interface{}) bool {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.WithKind(string(service.KindValidation), err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, apierror.NewValidation(fields))
		return false
	}
	return true
}

// parseID reads a positive integer path parameter.
func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, apierror.WithKind(string(service.KindValidation), "Invalid "+param))
		return 0, false
	}
	return uint(id), true
}

// queryInt reads an optional positive integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, apierror.WithKind(string(service.KindValidation), "Invalid "+name))
		return 0, false
	}
	return n, true
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindBatchNotFound, service.KindValidation:
		return http.StatusBadRequest
	case service.KindInsufficientStock, service.KindConflict:
		return http.StatusConflict
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindLockTimeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope for err. Internal errors are attached
// to the context for ErrorHandler to log and never reach the client.
func respondError(c *gin.Context, err error) {
	kind := service.Kind(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, apierror.WithKind(string(service.KindInternal), "Internal server error"))
		return
	}
	if kind == service.KindLockTimeout {
		c.Header("Retry-After", lockRetryAfter)
	}
	c.AbortWithStatusJSON(status, apierror.WithKind(string(kind), err.Error()))
}
