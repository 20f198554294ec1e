package serv

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerHealthTools registers the check_health tool
func (ms *mcpServer) registerHealthTools() {
	ms.srv.AddTool(mcp.NewTool(
		"check_health",
		mcp.WithDescription("Check the health of the gateway. Returns transport "+
			"reachability with ping latency, cache backend status and hit rate, "+
			"and service uptime. Use to diagnose connectivity issues."),
	), ms.handleCheckHealth)
}

// HealthResult represents the health check response
type HealthResult struct {
	Status       string  `json:"status"`
	Version      string  `json:"version"`
	Uptime       string  `json:"uptime"`
	PingLatency  string  `json:"ping_latency,omitempty"`
	CacheBackend string  `json:"cache_backend"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	Error        string  `json:"error,omitempty"`
}

// handleCheckHealth checks transport and cache health
func (ms *mcpServer) handleCheckHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s := ms.service

	result := HealthResult{
		Status:       "healthy",
		Version:      version,
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		CacheBackend: s.conf.Cache.Backend,
		CacheHitRate: s.cache.Metrics().HitRate(),
	}
	if result.CacheBackend == "" {
		result.CacheBackend = "memory"
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := s.transport.Ping(pingCtx)
	result.PingLatency = time.Since(start).String()

	if err != nil {
		result.Status = "unhealthy"
		result.Error = fmt.Sprintf("ping failed: %v", err)
	}

	data, err := mcpMarshalJSON(result, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
