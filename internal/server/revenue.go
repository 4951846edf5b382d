package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/revrec/internal/ledger/domain"
	obslogger "github.com/smallbiznis/revrec/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) ListInvoiceRevenue(c *gin.Context) {
	records, err := s.ledgerSvc.ListByInvoice(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) ListRevenue(c *gin.Context) {
	var req ledgerdomain.ListRevenueRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.ListByFamily(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Records, "page_info": resp.PageInfo})
}

func (s *Server) ReplayInvoiceRevenue(c *gin.Context) {
	outcome, err := s.recognitionSvc.Replay(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": outcome})
}

func (s *Server) ReplayPaidRevenue(c *gin.Context) {
	summary, err := s.recognitionSvc.ReplayPaid(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// replayRateLimit throttles replay endpoints. Limiter failures let the
// request through.
func (s *Server) replayRateLimit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.replayGuard.Enabled() {
			c.Next()
			return
		}

		res, err := s.replayGuard.Allow(c.Request.Context(), scope)
		if err != nil {
			obslogger.WithContext(c.Request.Context(), s.log).Warn("replay rate limit check failed", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
