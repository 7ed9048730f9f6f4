package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordImport(t *testing.T) {
	before := testutil.ToFloat64(ImportRowsTotal.WithLabelValues("tiktok", "rejected"))

	RecordImport("tiktok", "completed", 8, 2, 120*time.Millisecond)

	assert.Equal(t, before+2, testutil.ToFloat64(ImportRowsTotal.WithLabelValues("tiktok", "rejected")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(ImportBatchesTotal.WithLabelValues("tiktok", "completed")), 1.0)
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/overview", "200"))
	RecordAPIRequest("GET", "/api/overview", 200, 5*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/overview", "200")))
}

func TestRecordSync(t *testing.T) {
	RecordSync("ok")
	assert.Greater(t, testutil.ToFloat64(SyncLastSuccess), 0.0)

	before := testutil.ToFloat64(SyncRunsTotal.WithLabelValues("partial"))
	RecordSync("partial")
	assert.Equal(t, before+1, testutil.ToFloat64(SyncRunsTotal.WithLabelValues("partial")))
}
