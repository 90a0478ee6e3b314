package events

import (
	"net/http"
	"time"

	"contracthub/internal/common"
	"contracthub/internal/contract"
	"contracthub/internal/logger"
	"contracthub/internal/notification"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler 推送合同审批与签署事件的 WebSocket 连接
type WebSocketHandler struct {
	streamer  *notification.Streamer
	contracts *contract.Store
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler 创建处理器
func NewWebSocketHandler(streamer *notification.Streamer, contracts *contract.Store) *WebSocketHandler {
	return &WebSocketHandler{
		streamer:  streamer,
		contracts: contracts,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect 升级连接并订阅合同事件
// GET /api/contracts/:id/events
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if h == nil || h.streamer == nil {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse(common.CodeInternalError, "WebSocket 服务未就绪"))
		return
	}
	contractID := c.Param("id")
	if _, err := h.contracts.Get(c.Request.Context(), contractID); err != nil {
		common.ResponseFromError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	})

	if err := h.streamer.Serve(c.Request.Context(), conn, contractID); err != nil {
		logger.WithContext(c.Request.Context(), logger.OrNop()).Debug("事件推送连接结束",
			zap.String("contract_id", contractID),
			zap.Error(err),
		)
	}
}
