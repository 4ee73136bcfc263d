package addon

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
)

const supervisorPingTimeout = 5 * time.Second

// DetectSupervisor reports whether the process runs under the Home Assistant
// Supervisor. It needs a token and a ping answered with {"result":"ok"}.
func DetectSupervisor(ctx context.Context, httpClient *http.Client, supervisorURL, token string, logger *log.Logger) bool {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentAddon)

	if token == "" {
		logger.DebugContext(ctx, "SUPERVISOR_TOKEN not set, skipping Supervisor detection")
		return false
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, supervisorPingTimeout)
	defer cancel()

	url := strings.TrimRight(supervisorURL, "/") + "/supervisor/ping"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.WarnContext(ctx, "Supervisor ping request invalid", log.FieldError, err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		logger.WarnContext(ctx, "Supervisor ping failed", log.FieldError, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.WarnContext(ctx, "Supervisor ping failed", log.FieldStatusCode, resp.StatusCode)
		return false
	}

	var body struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logger.WarnContext(ctx, "Supervisor ping returned invalid JSON", log.FieldError, err)
		return false
	}
	if body.Result != "ok" {
		logger.WarnContext(ctx, "Supervisor ping responded but result was not ok", "result", body.Result)
		return false
	}

	logger.InfoContext(ctx, "Supervisor environment confirmed")
	return true
}
