package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Submit("inserted")
	m.Submit("inserted")
	m.Submit("failed")
	m.Export("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submits.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submits.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("ok")))
}

func TestHandlerExposesHostCalls(t *testing.T) {
	m := New()
	m.ObserveHostCall("get_body", 15*time.Millisecond, nil)
	m.ObserveHostCall("set_body", time.Millisecond, errors.New("x"))
	m.Options("projects", 4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `timereport_host_call_seconds_count{op="get_body",status="ok"} 1`)
	assert.Contains(t, body, `timereport_host_call_seconds_count{op="set_body",status="error"} 1`)
	assert.Contains(t, body, `timereport_options_loaded{list="projects"} 4`)
}
