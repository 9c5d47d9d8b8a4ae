package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// Pagination metadata returned with paginated responses.
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	TotalPage   int   `json:"total_page"`
	Size        int   `json:"size"`
	HasNextPage bool  `json:"has_next_page"`
}

type pagedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// OK sends a 200 response. Slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil && reflect.ValueOf(data).Kind() == reflect.Slice {
		c.JSON(http.StatusOK, gin.H{"data": data})
		return
	}
	c.JSON(http.StatusOK, data)
}

// Paged sends a paginated list response.
func Paged(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, pagedResponse{Data: data, Pagination: pagination})
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Redirect sends a 302 to the given location.
func Redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 error response. The login entry point is included
// so API clients know where to send the user; the originally requested path
// is carried as the next parameter.
func Unauthorized(c *gin.Context, loginPath string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"ok":      0,
		"code":    http.StatusUnauthorized,
		"message": "authentication required",
		"login":   loginPath,
		"next":    c.Request.URL.Path,
	})
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context) {
	abort(c, http.StatusForbidden, "you do not have permission to do that")
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context) {
	abort(c, http.StatusNotFound, "not found")
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	abort(c, http.StatusMethodNotAllowed, "method not allowed")
}

// FieldConflict sends a 409 for a uniqueness violation, naming the field so
// the client can attach the error to the offending form input.
func FieldConflict(c *gin.Context, field string) {
	c.AbortWithStatusJSON(http.StatusConflict, gin.H{
		"ok":      0,
		"code":    http.StatusConflict,
		"message": field + " is already in use",
		"field":   field,
	})
}

// UnprocessableEntity sends a 422 error response.
func UnprocessableEntity(c *gin.Context, message string) {
	abort(c, http.StatusUnprocessableEntity, message)
}

// InternalError sends a generic 500. Internal detail is never exposed to the
// client; the caller logs the underlying error server-side.
func InternalError(c *gin.Context) {
	abort(c, http.StatusInternalServerError, "something went wrong, please try again or contact an administrator")
}

func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"ok": 0, "code": code, "message": message})
}
