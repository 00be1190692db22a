package metric_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"emailtoics/src-server/metric"
	"emailtoics/src-server/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Value of the first sample of a gauge or counter family matching labels.
func gathered(t *testing.T, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			if m.GetGauge() != nil {
				return m.GetGauge().GetValue(), true
			}
			return m.GetCounter().GetValue(), true
		}
	}
	return 0, false
}

func TestCountDocument(t *testing.T) {
	labels := map[string]string{"op": "serialize", "result": "error"}
	before, _ := gathered(t, "emailtoics_documents_total", labels)
	metric.CountDocument("serialize", errors.New("boom"))
	metric.CountDocument("serialize", nil)
	after, ok := gathered(t, "emailtoics_documents_total", labels)
	if !ok || after != before+1 {
		t.Errorf("expected %v, got %v (found %v)", before+1, after, ok)
	}
}

func TestInit(t *testing.T) {
	cfg, err := utils.LoadConfig(func(key string) string {
		if key == "METRIC_COLLECTION_INTERVAL" {
			return "1s"
		}
		return ""
	})
	if err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	as, err := utils.NewAppStateWith(cfg, bun.NewDB(db, sqlitedialect.New()))
	if err != nil {
		t.Fatal(err)
	}

	metric.Init(as)
	as.MetricChans.Report(as.MetricChans.Serialize, 42)

	deadline := time.Now().Add(time.Second)
	for {
		if v, _ := gathered(t, "emailtoics_serialize_microsec", nil); v == 42 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("serialize sample never reached the gauge")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok := gathered(t, "emailtoics_discord_heartbeat_latency_microsec", nil); ok {
		t.Error("heartbeat gauge registered without a discord session")
	}

	as.GracefulShutdown()
	deadline = time.Now().Add(time.Second)
	for {
		if _, ok := gathered(t, "emailtoics_serialize_microsec", nil); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("gauge still registered after shutdown")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
