package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResponseSuccess 返回成功响应
func ResponseSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse(data))
}

// ResponseCreated 返回创建成功响应（201）
func ResponseCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, SuccessResponse(data))
}

// ResponseError 返回错误响应
func ResponseError(c *gin.Context, httpStatus, code int, message string) {
	if message == "" {
		message = GetErrorMessage(code)
	}
	c.JSON(httpStatus, ErrorResponse(code, message))
}

// ResponseBadRequest 返回参数错误响应
func ResponseBadRequest(c *gin.Context, message string) {
	ResponseError(c, http.StatusBadRequest, CodeInvalidRequest, message)
}

// ResponseUnauthorized 返回未认证响应
func ResponseUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "未认证，请先登录"
	}
	ResponseError(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

// AbortWithError 中断并返回错误
func AbortWithError(c *gin.Context, httpStatus, code int, message string) {
	ResponseError(c, httpStatus, code, message)
	c.Abort()
}

// ResponseFromError 按错误分类映射 HTTP 状态码
func ResponseFromError(c *gin.Context, err error) {
	var be *BusinessError
	if !errors.As(err, &be) {
		ResponseError(c, http.StatusInternalServerError, CodeInternalError, "")
		return
	}
	ResponseError(c, HTTPStatus(be.Kind), be.Code, be.Message)
}

// HTTPStatus 错误分类对应的 HTTP 状态码
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindBusinessLogic:
		return http.StatusUnprocessableEntity
	case KindExternalLookup:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
