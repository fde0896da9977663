package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const CodeOK = "OK"

type APIResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Code: CodeOK, Message: "ok", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Code: CodeOK, Message: "created", Data: data})
}

func Error(c *gin.Context, httpStatus int, code string, message string) {
	c.JSON(httpStatus, APIResponse{Code: code, Message: message})
}

// Invalid reports field-level validation problems.
func Invalid(c *gin.Context, code string, message string, fieldErrors interface{}) {
	c.JSON(http.StatusBadRequest, APIResponse{Code: code, Message: message, Errors: fieldErrors})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
