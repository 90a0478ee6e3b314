package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有需要认证的 API 路由
func RegisterRoutes(api *gin.RouterGroup, h *Handlers) {
	registerContractRoutes(api, h)
	registerApprovalRoutes(api, h)
	registerSignatureRoutes(api, h)
	registerTemplateRoutes(api, h)
}

func registerContractRoutes(api *gin.RouterGroup, h *Handlers) {
	contracts := api.Group("/contracts")
	{
		contracts.POST("", h.Contracts.Create)
		contracts.GET("/:id", h.Contracts.Get)
		contracts.GET("/:id/history", h.Contracts.History)
		contracts.PATCH("/:id/fields", h.Contracts.UpdateFields)
		contracts.GET("/:id/events", h.Events.Connect)
	}
}

func registerApprovalRoutes(api *gin.RouterGroup, h *Handlers) {
	contracts := api.Group("/contracts/:id/approvals")
	{
		contracts.POST("", h.Approvals.Initiate)
		contracts.GET("", h.Approvals.List)
		contracts.POST("/recompute", h.Approvals.Recompute)
	}

	api.POST("/approvals/:id/decision", h.Approvals.Decide)
}

func registerSignatureRoutes(api *gin.RouterGroup, h *Handlers) {
	api.POST("/contracts/:id/signature-package", h.Signatures.CreatePackage)
	api.GET("/contracts/:id/signature-package", h.Signatures.GetPackage)

	signatures := api.Group("/signatures/:id")
	{
		signatures.POST("/sign", h.Signatures.Sign)
		signatures.POST("/decline", h.Signatures.Decline)
		signatures.POST("/cancel", h.Signatures.Cancel)
	}
}

func registerTemplateRoutes(api *gin.RouterGroup, h *Handlers) {
	templates := api.Group("/workflow-templates")
	{
		templates.GET("", h.Templates.ListTemplates)
		templates.POST("", h.Templates.CreateTemplate)
		templates.GET("/:id", h.Templates.GetTemplate)
		templates.DELETE("/:id", h.Templates.DeleteTemplate)
	}
}
