package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"baseroute/internal/database"
	"baseroute/internal/model"
	"baseroute/internal/routing"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type analyzeRequest struct {
	PairFrom string `json:"pairFrom" binding:"required"`
	PairTo   string `json:"pairTo" binding:"required"`
	AmountIn string `json:"amountIn" binding:"required"`
}

type tokensResponse struct {
	Tokens []model.Token     `json:"tokens"`
	Pairs  []model.TokenPair `json:"pairs"`
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, routing.ErrNoLiquidity):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "No route found for this pair and amount", Code: "NO_LIQUIDITY"})
	case errors.Is(err, routing.ErrUnknownToken),
		errors.Is(err, routing.ErrUnsupportedPair),
		errors.Is(err, routing.ErrInvalidAmount),
		errors.Is(err, database.ErrInvalidRecord),
		errors.Is(err, database.ErrDuplicateTradeID):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "Trade not found"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.logger.Warn("Request aborted", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "request timed out before routes were quoted", Code: "ABORTED"})
	default:
		s.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listTokens(c *gin.Context) {
	c.JSON(http.StatusOK, tokensResponse{Tokens: s.registry.Tokens(), Pairs: s.registry.Pairs()})
}

func (s *Server) listPairs(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.Pairs())
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "pairFrom, pairTo and amountIn are required"})
		return
	}

	result, err := s.analyzer.Analyze(c.Request.Context(), req.PairFrom, req.PairTo, req.AmountIn)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) createTrade(c *gin.Context) {
	var trade model.TradeRecord
	if err := c.ShouldBindJSON(&trade); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed trade payload: " + err.Error()})
		return
	}
	trade.ID = 0
	trade.ApplyDefaults(s.now())
	if trade.Timestamp.IsZero() {
		trade.Timestamp = s.now().UTC()
	}

	stored, err := s.repo.CreateTrade(c.Request.Context(), &trade)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.logger.Info("Trade recorded", "tradeId", stored.TradeID, "quality", stored.ExecutionQuality)
	c.JSON(http.StatusCreated, stored)
}

func (s *Server) listTrades(c *gin.Context) {
	var (
		trades []model.TradeRecord
		err    error
	)
	switch wallet, ids := c.Query("wallet"), splitIDs(c.Query("ids")); {
	case wallet != "":
		trades, err = s.repo.ListTradesByWallet(c.Request.Context(), wallet)
	case len(ids) > 0:
		trades, err = s.repo.ListTradesByIDs(c.Request.Context(), ids)
	default:
		trades, err = s.repo.ListTrades(c.Request.Context())
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	if trades == nil {
		trades = []model.TradeRecord{}
	}
	c.JSON(http.StatusOK, trades)
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Server) getTrade(c *gin.Context) {
	trade, err := s.repo.GetTrade(c.Request.Context(), c.Param("tradeId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) tradeReport(c *gin.Context) {
	trade, err := s.repo.GetTrade(c.Request.Context(), c.Param("tradeId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade.Report())
}
