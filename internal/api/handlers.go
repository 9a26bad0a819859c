package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trading-bot/pkg/db"
)

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " not available"})
}

func (s *Server) getSystem(c *gin.Context) {
	body := gin.H{"meta": s.Meta}
	if s.Contracts != nil {
		body["contracts"] = s.Contracts.Len()
	}
	if s.Stream != nil {
		body["stream"] = gin.H{
			"state":         s.Stream.State().String(),
			"subscriptions": len(s.Stream.Subscriptions()),
		}
	}
	if s.Bus != nil {
		body["bus_dropped"] = s.Bus.Dropped()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) getPrices(c *gin.Context) {
	if s.Prices == nil {
		unavailable(c, "prices")
		return
	}
	c.JSON(http.StatusOK, s.Prices.All())
}

// getPrice returns one quote with its age so the UI can flag stale prices.
func (s *Server) getPrice(c *gin.Context) {
	if s.Prices == nil {
		unavailable(c, "prices")
		return
	}
	symbol := strings.ToUpper(c.Param("symbol"))
	q, age, ok := s.Prices.GetWithAge(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no quote for " + symbol})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "bid": q.Bid, "ask": q.Ask, "age_ms": age.Milliseconds()})
}

func (s *Server) getContract(c *gin.Context) {
	if s.Contracts == nil {
		unavailable(c, "contracts")
		return
	}
	symbol := strings.ToUpper(c.Param("symbol"))
	contract, ok := s.Contracts.Get(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown contract " + symbol})
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (s *Server) getStrategies(c *gin.Context) {
	if s.Strategies == nil {
		unavailable(c, "strategies")
		return
	}
	c.JSON(http.StatusOK, s.Strategies.Snapshot())
}

func (s *Server) getStrategyTrades(c *gin.Context) {
	if s.Strategies == nil {
		unavailable(c, "strategies")
		return
	}
	trades, ok := s.Strategies.Trades(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) getStrategyLogs(c *gin.Context) {
	if s.Strategies == nil {
		unavailable(c, "strategies")
		return
	}
	pending, _ := strconv.ParseBool(c.DefaultQuery("pending", "false"))
	logs, ok := s.Strategies.Logs(c.Param("id"), pending)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (s *Server) getBalances(c *gin.Context) {
	if s.Balances == nil {
		unavailable(c, "balances")
		return
	}
	balances, syncedAt := s.Balances.Snapshot()
	c.JSON(http.StatusOK, gin.H{"balances": balances, "synced_at": syncedAt})
}

type historyItem struct {
	ID         int64      `json:"id"`
	StrategyID string     `json:"strategy_id"`
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"`
	Quantity   float64    `json:"quantity"`
	EntryPrice *float64   `json:"entry_price"`
	Status     string     `json:"status"`
	PnL        float64    `json:"pnl"`
	ExitReason string     `json:"exit_reason,omitempty"`
	OpenedAt   time.Time  `json:"opened_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

func toHistoryItem(r db.TradeRow) historyItem {
	item := historyItem{
		ID:         r.ID,
		StrategyID: r.StrategyID,
		Symbol:     r.Symbol,
		Side:       r.Side,
		Quantity:   r.Quantity,
		Status:     r.Status,
		PnL:        r.PnL,
		ExitReason: r.ExitReason,
		OpenedAt:   r.OpenedAt,
	}
	if r.EntryPrice.Valid {
		item.EntryPrice = &r.EntryPrice.Float64
	}
	if r.ClosedAt.Valid {
		item.ClosedAt = &r.ClosedAt.Time
	}
	return item
}

// getHistory lists stored trades; ?strategy= narrows to one instance.
func (s *Server) getHistory(c *gin.Context) {
	if s.History == nil {
		unavailable(c, "trade history")
		return
	}
	rows, err := s.History.ListTrades(c.Request.Context(), c.Query("strategy"))
	if err != nil {
		s.logger.Error("trade history query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trade history unavailable"})
		return
	}
	items := make([]historyItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, toHistoryItem(r))
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) getBalance(c *gin.Context) {
	if s.Balances == nil {
		unavailable(c, "balances")
		return
	}
	asset := strings.ToUpper(c.Param("asset"))
	b, ok := s.Balances.Get(asset)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no balance for " + asset})
		return
	}
	c.JSON(http.StatusOK, b)
}
