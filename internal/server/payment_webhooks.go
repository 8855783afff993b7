package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	paymentlinkdomain "github.com/emadn88/elmcorner/internal/paymentlink/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

// HandleMidtransNotification acknowledges notifications for orders this
// service never issued so the gateway stops retrying them.
func (s *Server) HandleMidtransNotification(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var notification paymentlinkdomain.GatewayNotification
	if err := json.Unmarshal(payload, &notification); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentLinkSvc.HandleNotification(c.Request.Context(), notification)
	if err != nil {
		if errors.Is(err, paymentlinkdomain.ErrUnknownOrder) {
			s.log.Warn("payment notification for unknown order", zap.String("order_id", notification.OrderID))
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "outcome": resp.Outcome})
}
