// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T) map[string]*dto.MetricFamily {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	m := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		m[mf.GetName()] = mf
	}
	return m
}

func TestPromMetrics(t *testing.T) {
	lazyCounter := LazyLoadCounter("lazy_counter")

	InitializePrometheusMetrics()
	InitializePrometheusMetrics()

	count1 := Counter("count1")
	count1.Add(1)
	Counter("count1").Add(2)

	CounterVec("count_vec", []string{"event"}).AddWithLabel(4, map[string]string{"event": "a"})

	gauge := Gauge("gauge1")
	gauge.Set(10)
	gauge.Add(-3)

	gaugeVec := GaugeVec("gauge_vec", []string{"event"})
	gaugeVec.SetWithLabel(5, map[string]string{"event": "hit"})
	gaugeVec.AddWithLabel(1, map[string]string{"event": "hit"})
	gaugeVec.SetWithLabel(2, map[string]string{"event": "miss"})

	hist := Histogram("hist1", Bucket10s)
	var histTotal int64
	for i := range int64(20) {
		hist.Observe(i)
		histTotal += i
	}

	lazyCounter().Add(6)
	require.IsType(t, &promCountMeter{}, lazyCounter())

	metrics := gather(t)
	require.Equal(t, float64(3), metrics["accountsdb_count1"].Metric[0].GetCounter().GetValue())
	require.Equal(t, float64(4), metrics["accountsdb_count_vec"].Metric[0].GetCounter().GetValue())
	require.Equal(t, float64(7), metrics["accountsdb_gauge1"].Metric[0].GetGauge().GetValue())
	require.Equal(t, float64(histTotal), metrics["accountsdb_hist1"].Metric[0].GetHistogram().GetSampleSum())
	require.Equal(t, float64(6), metrics["accountsdb_lazy_counter"].Metric[0].GetCounter().GetValue())

	sumGaugeVec := metrics["accountsdb_gauge_vec"].Metric[0].GetGauge().GetValue() +
		metrics["accountsdb_gauge_vec"].Metric[1].GetGauge().GetValue()
	require.Equal(t, float64(8), sumGaugeVec)

	server := httptest.NewServer(HTTPHandler())
	t.Cleanup(server.Close)
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "accountsdb_count1 3")
}
