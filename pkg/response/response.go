package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body 统一的 JSON 响应结构
type Body struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Message: message, Data: data})
}

// Fail 返回失败响应（HTTP 200，业务失败）
func Fail(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: false, Message: message, Data: data})
}

// FailWithStatus 返回指定状态码的失败响应
func FailWithStatus(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Body{Success: false, Message: message, Data: data})
}
