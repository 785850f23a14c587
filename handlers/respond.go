package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

func init() {
	// report json names in binding errors, the same way the models do
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	}
}

func statusForKind(kind utils.ErrorKind) int {
	switch kind {
	case utils.ErrorKindValidation:
		return http.StatusBadRequest
	case utils.ErrorKindUnauthenticated:
		return http.StatusUnauthorized
	case utils.ErrorKindPermission:
		return http.StatusForbidden
	case utils.ErrorKindNotFound:
		return http.StatusNotFound
	case utils.ErrorKindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": message} with the status mapped from the error kind.
// Internal errors are logged and answered with a generic message.
func respondError(c *gin.Context, funcName string, err error) {
	kind := utils.KindOf(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		config.LogEntry(config.GetLogger(), c.Request.Context()).WithFields(logrus.Fields{
			"funcName": funcName,
			"route":    c.Request.Method + " " + c.FullPath(),
		}).Error(err.Error())
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	body := gin.H{"error": errorMessage(err)}
	if utils.IsRetryable(err) {
		body["retryable"] = true
	}
	c.AbortWithStatusJSON(status, body)
}

func errorMessage(err error) string {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := utils.ProcessValidationErrors(err)
		names := make([]string, 0, len(fields))
		for field, tag := range fields {
			names = append(names, field+" ("+tag+")")
		}
		sort.Strings(names)
		return "invalid fields: " + strings.Join(names, ", ")
	}
	if utils.KindOf(err) == utils.ErrorKindNotFound {
		return "record not found"
	}
	return err.Error()
}

// bindJSON decodes the request body into obj and answers 400 when it fails.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			respondError(c, "bindJSON", err)
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func bindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return false
	}
	return true
}

// pathId parses a positive integer path parameter.
func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// sessionCustomerId is the customer linked to the session user.
func sessionCustomerId(c *gin.Context) (int, bool) {
	customerId, ok := utils.GetCustomerIdFromContext(c.Request.Context())
	if !ok || customerId <= 0 {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no customer profile linked to this user"})
		return 0, false
	}
	return customerId, true
}

type activeInput struct {
	IsActive *bool `json:"is_active" binding:"required"`
}
