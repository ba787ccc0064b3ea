package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	statuses []GatewayStatus
}

func (f fakeProvider) GatewayStatuses() []GatewayStatus { return f.statuses }

func TestHealthHandlerReportsHealthyWhenAllReady(t *testing.T) {
	s := NewServer(fakeProvider{statuses: []GatewayStatus{
		{Name: "Discord", Ready: true},
		{Name: "Spacebar", Ready: true},
	}})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Len(t, body.Gateways, 2)
}

func TestHealthHandlerReportsUnhealthyOnGatewayError(t *testing.T) {
	s := NewServer(fakeProvider{statuses: []GatewayStatus{
		{Name: "Discord", Ready: false, Err: errors.New("disconnected")},
	}})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "disconnected", body.Gateways[0].Error)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := NewServer(fakeProvider{})
	s.RecordRelay("A->B", "create")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "bridge_messages_relayed_total")
}
