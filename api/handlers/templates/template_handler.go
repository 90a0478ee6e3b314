package templates

import (
	"net/http"
	"strconv"

	"contracthub/internal/auth"
	"contracthub/internal/common"
	"contracthub/internal/workflow"
	"contracthub/internal/workflow/template"

	"github.com/gin-gonic/gin"
)

// TemplateHandler 审批流程模板管理 Handler
type TemplateHandler struct {
	service *workflow.TemplateService
}

// NewTemplateHandler 创建 TemplateHandler 实例
func NewTemplateHandler(service *workflow.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// ListTemplates 查询模板列表
// GET /api/workflow-templates?page=1&page_size=20
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	resp, err := h.service.ListTemplates(c.Request.Context(), page, pageSize)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, resp)
}

// GetTemplate 查询单个模板（含步骤与条件）
// GET /api/workflow-templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	tpl, err := h.service.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, tpl)
}

// CreateTemplate 创建模板
// POST /api/workflow-templates
// 请求体与模板文件中的单个模板结构一致，校验失败时返回逐字段错误
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req template.Template
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	tpl, err := req.ToModel()
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	if errs := workflow.Validate(tpl); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Success: false,
			Data:    gin.H{"errors": errs},
			Message: "模板校验失败",
			Code:    common.CodeInvalidRequest,
		})
		return
	}

	if actor := auth.UserID(c); actor != "" {
		tpl.CreatedByID = &actor
	}
	if err := h.service.CreateTemplate(c.Request.Context(), tpl); err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseCreated(c, tpl)
}

// DeleteTemplate 删除模板
// DELETE /api/workflow-templates/:id
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := h.service.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		common.ResponseFromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
