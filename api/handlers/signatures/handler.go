package signatures

import (
	"context"

	"contracthub/internal/auth"
	"contracthub/internal/common"
	"contracthub/internal/signature"

	"github.com/gin-gonic/gin"
)

// Handler 签署 Handler
type Handler struct {
	tracker *signature.Tracker
}

// NewHandler 创建签署 Handler
func NewHandler(tracker *signature.Tracker) *Handler {
	return &Handler{tracker: tracker}
}

// CreatePackageRequest 创建签署包请求
type CreatePackageRequest struct {
	Signers []signature.SignerInput `json:"signers" binding:"required,min=1,dive"`
}

// ActionRequest 签署操作请求
type ActionRequest struct {
	Reason string `json:"reason"`
}

// CreatePackage 创建签署包
// POST /api/contracts/:id/signature-package
func (h *Handler) CreatePackage(c *gin.Context) {
	var req CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, err.Error())
		return
	}

	pkg, err := h.tracker.CreatePackage(c.Request.Context(), signature.CreatePackageInput{
		ContractID: c.Param("id"),
		ActorID:    auth.UserID(c),
		Signers:    req.Signers,
	})
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseCreated(c, pkg)
}

// GetPackage 查询合同的签署包
// GET /api/contracts/:id/signature-package
func (h *Handler) GetPackage(c *gin.Context) {
	pkg, err := h.tracker.GetPackage(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, pkg)
}

// Sign POST /api/signatures/:id/sign
func (h *Handler) Sign(c *gin.Context) {
	h.act(c, h.tracker.Sign)
}

// Decline POST /api/signatures/:id/decline
func (h *Handler) Decline(c *gin.Context) {
	h.act(c, h.tracker.Decline)
}

// Cancel POST /api/signatures/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	h.act(c, h.tracker.Cancel)
}

type action func(ctx context.Context, in signature.ActionInput) (*signature.ActionResult, error)

func (h *Handler) act(c *gin.Context, do action) {
	var req ActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.ResponseBadRequest(c, err.Error())
			return
		}
	}

	result, err := do(c.Request.Context(), signature.ActionInput{
		SignatureID: c.Param("id"),
		ActorID:     auth.UserID(c),
		Reason:      req.Reason,
	})
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}
