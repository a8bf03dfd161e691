package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"agrimarket/internal/auth"
	"agrimarket/internal/commodity"
	"agrimarket/internal/models"
	"agrimarket/internal/services"
	"agrimarket/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type APIHandler struct {
	feed      *services.PriceFeed
	syncer    *services.Syncer
	store     *store.PriceStore
	jwtSecret string
	upgrader  websocket.Upgrader
}

func SetupRoutes(r *gin.RouterGroup, feed *services.PriceFeed, syncer *services.Syncer, st *store.PriceStore, jwtSecret string) *APIHandler {
	handler := &APIHandler{
		feed:      feed,
		syncer:    syncer,
		store:     st,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			// same-origin policy is enforced by the deployment proxy
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	sync := r.Group("/sync")
	{
		sync.POST("/run", handler.RunSync)
		sync.GET("/status", handler.SyncStatus)
		sync.GET("/logs", handler.SyncLogs)
	}

	prices := r.Group("/prices")
	{
		prices.GET("", handler.ListPrices)
		prices.GET("/latest", handler.LatestPrice)
		prices.GET("/average", handler.AveragePrice)
		prices.GET("/history", handler.PriceHistory)
		prices.GET("/export", handler.ExportPrices)
	}

	r.GET("/markets/rankings", handler.MarketRankings)
	r.GET("/ws", handler.PriceFeedWS)

	return handler
}

// parseFilter builds a store filter from query parameters. Commodity input
// is free-form and normalized; an unknown commodity is a client error.
func parseFilter(c *gin.Context) (store.Filter, error) {
	var f store.Filter
	if raw := c.Query("commodity"); raw != "" {
		canonical, err := commodity.Normalize(raw)
		if err != nil {
			return f, fmt.Errorf("unknown commodity %q", raw)
		}
		f.Commodity = canonical
	}
	f.Market = c.Query("market")
	f.County = c.Query("county")
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, fmt.Errorf("invalid start_date %q", v)
		}
		f.StartDate = t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, fmt.Errorf("invalid end_date %q", v)
		}
		f.EndDate = t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = n
	}
	return f, nil
}

// RunSync triggers a full pass. Guarded calls return a zero summary; the
// pass itself is detached from the request context so an impatient client
// cannot cancel pairs mid-flight.
func (h *APIHandler) RunSync(c *gin.Context) {
	p := auth.FromContext(c)
	summary := h.syncer.SyncAll(context.Background(), p)

	resp := gin.H{"summary": summary}
	if summary.Errors > 0 && summary.Success == 0 {
		resp["message"] = "sync failed, showing cached data"
	}
	c.JSON(http.StatusOK, resp)
}

func (h *APIHandler) SyncStatus(c *gin.Context) {
	running, lastDone := h.syncer.Coordinator().Status()
	status := gin.H{"running": running}
	if !lastDone.IsZero() {
		status["last_completed_at"] = lastDone
	}
	c.JSON(http.StatusOK, status)
}

func (h *APIHandler) SyncLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	logs, err := h.store.SyncLogs(auth.FromContext(c), limit)
	if err != nil {
		// reads degrade, same policy as the feed
		c.JSON(http.StatusOK, gin.H{"logs": []struct{}{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *APIHandler) ListPrices(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.feed.Query(auth.FromContext(c), filter))
}

func (h *APIHandler) LatestPrice(c *gin.Context) {
	raw := c.Query("commodity")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "commodity is required"})
		return
	}
	canonical, err := commodity.Normalize(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown commodity %q", raw)})
		return
	}
	pt := h.feed.Latest(auth.FromContext(c), canonical, c.Query("market"))
	c.JSON(http.StatusOK, gin.H{"price": pt})
}

func (h *APIHandler) AveragePrice(c *gin.Context) {
	raw := c.Query("commodity")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "commodity is required"})
		return
	}
	canonical, err := commodity.Normalize(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown commodity %q", raw)})
		return
	}
	var since time.Time
	if v := c.Query("since"); v != "" {
		since, err = time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid since %q", v)})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"average": h.feed.Average(auth.FromContext(c), canonical, since)})
}

func (h *APIHandler) PriceHistory(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	interval := c.DefaultQuery("interval", "daily")
	points := h.feed.Query(auth.FromContext(c), filter)
	c.JSON(http.StatusOK, gin.H{
		"interval": interval,
		"series":   services.BucketHistory(points, interval),
	})
}

func (h *APIHandler) MarketRankings(c *gin.Context) {
	raw := c.Query("commodity")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "commodity is required"})
		return
	}
	canonical, err := commodity.Normalize(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown commodity %q", raw)})
		return
	}
	points := h.feed.Query(auth.FromContext(c), store.Filter{Commodity: canonical})
	c.JSON(http.StatusOK, gin.H{"rankings": services.RankMarkets(points)})
}

func (h *APIHandler) ExportPrices(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	points := h.feed.Query(auth.FromContext(c), filter)

	var buf bytes.Buffer
	if err := services.WritePriceReport(points, &buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}
	filename := "prices-" + time.Now().Format("2006-01-02") + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// PriceFeedWS streams filtered snapshots over a websocket: one on
// connect, then one per matching cache change. Browsers cannot set an
// Authorization header on websocket dials, so a token query parameter is
// also accepted.
func (h *APIHandler) PriceFeedWS(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := auth.FromContext(c)
	if p == nil {
		if token := c.Query("token"); token != "" {
			p, _ = auth.ParseToken(h.jwtSecret, token)
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	// Snapshots are written from the feed's delivery goroutine only, so
	// there is a single writer per connection.
	unsubscribe := h.feed.Subscribe(p, filter, func(snapshot []models.PricePoint) {
		if err := conn.WriteJSON(gin.H{"prices": snapshot}); err != nil {
			conn.Close()
		}
	})

	// Reader loop exists only to notice the peer going away.
	go func() {
		defer func() {
			unsubscribe()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
