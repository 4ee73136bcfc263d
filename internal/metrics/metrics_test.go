package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chbarnhouse/ha-finance-assistant/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestPromhttpExposure(t *testing.T) {
	metrics.RecordRefresh(150*time.Millisecond, nil)
	metrics.RecordRefresh(time.Second, errors.New("boom"))
	metrics.IncAddonRequest("direct", "success")
	metrics.IncStatePublish("written")
	metrics.RecordSensorCount("summary", 32)

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`finance_assistant_refresh_total{outcome="success"}`,
		`finance_assistant_refresh_total{outcome="failure"}`,
		`finance_assistant_addon_requests_total{outcome="success",route="direct"}`,
		`finance_assistant_states_published_total{outcome="written"}`,
		`finance_assistant_sensors{family="summary"} 32`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
