package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/internal/services/round"
)

type errorResponse struct {
	Error string `json:"error"`
}

type botsResponse struct {
	Bots        []domain.Bot      `json:"bots"`
	Leaderboard []domain.Standing `json:"leaderboard,omitempty"`
}

type saveBotsRequest struct {
	Bots []domain.Bot `json:"bots"`
}

type pricesResponse struct {
	BTC string `json:"btc"`
	ETH string `json:"eth"`
}

func (s *Server) fail(c *gin.Context, status int, msg string, err error) {
	s.logger.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(status, errorResponse{Error: msg})
}

// liveQuote returns the current quote or nil when it cannot be read.
func (s *Server) liveQuote(ctx context.Context) *domain.PriceQuote {
	if s.deps.Prices == nil {
		return nil
	}
	quote, err := s.deps.Prices.Fetch(ctx)
	if err != nil {
		s.logger.Warn("price fetch failed", zap.Error(err))
		return nil
	}
	return &quote
}

// getBots runs the daily reset check before reading the roster.
func (s *Server) getBots(c *gin.Context) {
	ctx := c.Request.Context()
	quote := s.liveQuote(ctx)

	if s.deps.Clock != nil {
		if _, err := s.deps.Clock.MaybeReset(ctx, s.deps.Now(), quote); err != nil {
			s.logger.Error("daily reset check failed", zap.Error(err))
		}
	}

	bots := s.deps.Store.BotsOrDefault(ctx)
	resp := botsResponse{Bots: bots}
	if quote != nil {
		resp.Leaderboard = domain.Leaderboard(bots, *quote)
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) saveBots(c *gin.Context) {
	var req saveBotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Bots == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "bots are required"})
		return
	}
	if err := domain.ValidateRoster(req.Bots); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.deps.Store.SaveBots(c.Request.Context(), req.Bots); err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to save bots", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) getTrades(c *gin.Context) {
	trades, err := s.deps.Store.Trades(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to get trades", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) getWinners(c *gin.Context) {
	winners, err := s.deps.Store.Winners(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to get winners", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"winners": winners})
}

func (s *Server) getPrices(c *gin.Context) {
	if s.deps.Prices == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "price source not configured"})
		return
	}
	quote, err := s.deps.Prices.Fetch(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, pricesResponse{BTC: quote.BTC.String(), ETH: quote.ETH.String()})
}

func (s *Server) getPriceHistory(c *gin.Context) {
	history, err := s.deps.Store.PriceHistory(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to get price history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// runRound runs a round outside the request lifetime so a dropped client does not discard it.
func (s *Server) runRound(c *gin.Context) {
	if s.deps.Rounds == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "rounds are not configured"})
		return
	}

	report, err := s.deps.Rounds.RunRound(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		if errors.Is(err, round.ErrRoundInProgress) {
			c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
			return
		}
		s.fail(c, http.StatusInternalServerError, "Round failed", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) getStatus(c *gin.Context) {
	if s.deps.Clock == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "competition clock not configured"})
		return
	}
	status, err := s.deps.Clock.Status(c.Request.Context(), s.deps.Now())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to get status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}
