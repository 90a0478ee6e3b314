package contracts

import (
	"contracthub/internal/auth"
	"contracthub/internal/common"
	"contracthub/internal/contract"
	"contracthub/internal/workflow/approval"

	"github.com/gin-gonic/gin"
)

// Handler 合同 Handler
type Handler struct {
	store  *contract.Store
	engine *approval.Engine
}

// NewHandler 创建合同 Handler
func NewHandler(store *contract.Store, engine *approval.Engine) *Handler {
	return &Handler{store: store, engine: engine}
}

// CreateRequest 创建合同请求
type CreateRequest struct {
	Title  string         `json:"title" binding:"required"`
	Fields map[string]any `json:"fields"`
}

// UpdateFieldsRequest 修改合同字段请求，值为 null 的字段被删除
type UpdateFieldsRequest struct {
	Fields map[string]any `json:"fields" binding:"required"`
}

// Create 创建草稿合同，创建人为当前用户
// POST /api/contracts
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	ct := &contract.Contract{
		Title:       req.Title,
		CreatedByID: auth.UserID(c),
		Fields:      req.Fields,
	}
	if err := h.store.Create(c.Request.Context(), ct); err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseCreated(c, ct)
}

// Get GET /api/contracts/:id
func (h *Handler) Get(c *gin.Context) {
	ct, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, ct)
}

// History 查询合同状态变更记录
// GET /api/contracts/:id/history
func (h *Handler) History(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.store.Get(ctx, c.Param("id")); err != nil {
		common.ResponseFromError(c, err)
		return
	}
	changes, err := h.store.History(ctx, c.Param("id"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"items": changes})
}

// UpdateFields 修改合同字段，命中模板的 RESET_WHEN 条件时重新发起审批
// PATCH /api/contracts/:id/fields
func (h *Handler) UpdateFields(c *gin.Context) {
	var req UpdateFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	ct, err := h.store.UpdateFields(ctx, c.Param("id"), req.Fields)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}

	result, reinitiated, err := h.engine.ReinitiateIfReset(ctx, ct.ID, auth.UserID(c))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	resp := gin.H{"contract": ct, "reinitiated": reinitiated}
	if reinitiated {
		resp["contract"] = result.Contract
		resp["approvals"] = result.Approvals
	}
	common.ResponseSuccess(c, resp)
}
