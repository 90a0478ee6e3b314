package common

import (
	"errors"
	"fmt"
)

// ============================================================================
// 通用响应类型
// ============================================================================

// APIResponse 统一API响应格式
type APIResponse struct {
	Success bool   `json:"success"`           // 是否成功
	Data    any    `json:"data,omitempty"`    // 响应数据
	Message string `json:"message,omitempty"` // 提示信息
	Code    int    `json:"code"`              // 业务状态码
}

// SuccessResponse 成功响应
func SuccessResponse(data any) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
		Code:    CodeSuccess,
	}
}

// ErrorResponse 错误响应
func ErrorResponse(code int, message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
		Code:    code,
	}
}

// ============================================================================
// 业务状态码定义
// ============================================================================

const (
	// 成功状态码
	CodeSuccess = 0

	// 通用错误码 (1000-1999)
	CodeInvalidRequest = 1000 // 请求参数错误
	CodeUnauthorized   = 1001 // 未授权
	CodeForbidden      = 1002 // 禁止访问
	CodeNotFound       = 1003 // 资源不存在
	CodeInternalError  = 1005 // 内部错误

	// 合同相关错误码 (2000-2099)
	CodeContractNotFound    = 2000 // 合同不存在
	CodeContractNotApproved = 2001 // 合同未通过审批
	CodeContractLocked      = 2002 // 合同已进入签署阶段
	CodeUserNotFound        = 2010 // 用户不存在
	CodeTeamNotFound        = 2011 // 团队不存在

	// 工作流相关错误码 (5000-5099)
	CodeTemplateNotFound         = 5000 // 工作流模板不存在
	CodeWorkflowValidationFailed = 5001 // 工作流验证失败
	CodeNoApproverFound          = 5003 // 未解析到任何审批人
	CodeApprovalNotFound         = 5010 // 审批记录不存在
	CodeApprovalNotDecidable     = 5011 // 审批记录不可处理
	CodeNotApprover              = 5012 // 非指定审批人

	// 签署相关错误码 (6000-6099)
	CodePackageNotFound   = 6000 // 签署包不存在
	CodePackageExists     = 6001 // 签署包已存在
	CodeSignatureNotFound = 6010 // 签署记录不存在
	CodeSignatureExpired  = 6011 // 签署已过期
	CodeSignatureClosed   = 6012 // 签署已结束
	CodeNotSigner         = 6013 // 非指定签署人
	CodeCancelForbidden   = 6014 // 无权取消签署

	// 外部依赖错误码 (7000-7099)
	CodeDirectoryUnavailable = 7000 // 用户目录不可用
)

// ErrorMessages 错误码对应的默认消息
var ErrorMessages = map[int]string{
	CodeSuccess:        "操作成功",
	CodeInvalidRequest: "请求参数错误",
	CodeUnauthorized:   "未授权，请先登录",
	CodeForbidden:      "无权限访问",
	CodeNotFound:       "资源不存在",
	CodeInternalError:  "系统内部错误",

	CodeContractNotFound:    "合同不存在",
	CodeContractNotApproved: "合同尚未通过审批，不能发起签署",
	CodeContractLocked:      "合同已进入签署或生效，不可修改字段或重新发起审批",
	CodeUserNotFound:        "用户不存在",
	CodeTeamNotFound:        "团队不存在",

	CodeTemplateNotFound:         "工作流模板不存在",
	CodeWorkflowValidationFailed: "工作流验证失败",
	CodeNoApproverFound:          "未找到审批人",
	CodeApprovalNotFound:         "审批记录不存在",
	CodeApprovalNotDecidable:     "审批记录已处理，无法再次审批",
	CodeNotApprover:              "当前用户不是该审批的审批人",

	CodePackageNotFound:   "签署包不存在",
	CodePackageExists:     "合同已存在签署包",
	CodeSignatureNotFound: "签署记录不存在",
	CodeSignatureExpired:  "签署已过期",
	CodeSignatureClosed:   "签署已结束",
	CodeNotSigner:         "当前用户不是该签署的签署人",
	CodeCancelForbidden:   "仅合同所有者或管理员可以取消签署",

	CodeDirectoryUnavailable: "用户目录服务不可用",
}

// GetErrorMessage 获取错误码对应的消息
func GetErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "未知错误"
}

// ============================================================================
// 业务错误类型
// ============================================================================

// ErrorKind 错误分类，决定错误的传播方式与 HTTP 映射
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindAuthorization  ErrorKind = "authorization"
	KindBusinessLogic  ErrorKind = "business_logic"
	KindExternalLookup ErrorKind = "external_lookup"
	KindInternal       ErrorKind = "internal"
)

// 哨兵错误，便于 errors.Is 按分类判断
var (
	ErrValidation     = &BusinessError{Kind: KindValidation}
	ErrNotFound       = &BusinessError{Kind: KindNotFound}
	ErrAuthorization  = &BusinessError{Kind: KindAuthorization}
	ErrBusinessLogic  = &BusinessError{Kind: KindBusinessLogic}
	ErrExternalLookup = &BusinessError{Kind: KindExternalLookup}
)

// BusinessError 业务错误
type BusinessError struct {
	Kind    ErrorKind // 错误分类
	Code    int       // 错误码
	Message string    // 错误信息
	Err     error     // 底层错误
}

// Error 实现error接口
func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *BusinessError) Unwrap() error {
	return e.Err
}

// Is 同分类的业务错误视为相等
func (e *BusinessError) Is(target error) bool {
	t, ok := target.(*BusinessError)
	if !ok {
		return false
	}
	if t.Code != 0 && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// NewBusinessError 创建业务错误
func NewBusinessError(kind ErrorKind, code int, message string) *BusinessError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &BusinessError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// ValidationError 参数或定义校验失败
func ValidationError(format string, args ...any) *BusinessError {
	return NewBusinessError(KindValidation, CodeWorkflowValidationFailed, fmt.Sprintf(format, args...))
}

// NotFoundError 资源不存在
func NotFoundError(code int, message string) *BusinessError {
	return NewBusinessError(KindNotFound, code, message)
}

// AuthorizationError 无权执行该操作
func AuthorizationError(code int, message string) *BusinessError {
	return NewBusinessError(KindAuthorization, code, message)
}

// BusinessLogicError 业务规则不满足
func BusinessLogicError(code int, message string) *BusinessError {
	return NewBusinessError(KindBusinessLogic, code, message)
}

// ExternalLookupError 外部查询失败
func ExternalLookupError(message string, err error) *BusinessError {
	e := NewBusinessError(KindExternalLookup, CodeDirectoryUnavailable, message)
	e.Err = err
	return e
}

// KindOf 返回错误的分类，非业务错误视为内部错误
func KindOf(err error) ErrorKind {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}
