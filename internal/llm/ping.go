package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Ping asks the generator for its version. Any 2xx answer counts as alive.
func (c *client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("llmclient: build ping request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable(0, "ping failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return unavailable(resp.StatusCode, truncate(string(body), 200), nil)
	}

	var v providerVersionResponse
	if json.Unmarshal(body, &v) == nil && v.Version != "" {
		c.logger.Debug("upstream ping ok", zap.String("version", v.Version))
	}
	return nil
}
