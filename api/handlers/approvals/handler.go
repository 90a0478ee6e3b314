package approvals

import (
	"contracthub/internal/auth"
	"contracthub/internal/common"
	"contracthub/internal/workflow/approval"

	"github.com/gin-gonic/gin"
)

// Handler 合同审批 Handler
type Handler struct {
	engine *approval.Engine
}

// NewHandler 创建审批 Handler
func NewHandler(engine *approval.Engine) *Handler {
	return &Handler{engine: engine}
}

// InitiateRequest 发起审批请求
type InitiateRequest struct {
	ApproverIDs []string `json:"approverIds"`
	TemplateID  string   `json:"templateId"`
	Variant     string   `json:"variant"`
}

// DecisionRequest 审批决定请求
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

// Initiate 发起或重新发起审批
// POST /api/contracts/:id/approvals
func (h *Handler) Initiate(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	result, err := h.engine.Initiate(c.Request.Context(), approval.InitiateInput{
		ContractID:        c.Param("id"),
		ActorID:           auth.UserID(c),
		ManualApproverIDs: req.ApproverIDs,
		TemplateID:        req.TemplateID,
		Variant:           req.Variant,
	})
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseCreated(c, result)
}

// List 查询合同的全部审批记录
// GET /api/contracts/:id/approvals
func (h *Handler) List(c *gin.Context) {
	records, err := h.engine.ListApprovals(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"items": records})
}

// Recompute 按当前审批记录重新推导合同状态
// POST /api/contracts/:id/approvals/recompute
func (h *Handler) Recompute(c *gin.Context) {
	result, err := h.engine.Recompute(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}

// Decide 记录审批决定
// POST /api/approvals/:id/decision
func (h *Handler) Decide(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	result, err := h.engine.RecordDecision(c.Request.Context(), approval.DecisionInput{
		ApprovalID: c.Param("id"),
		ActorID:    auth.UserID(c),
		Decision:   approval.Decision(req.Decision),
		Comment:    req.Comment,
	})
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}
