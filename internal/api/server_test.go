package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/config"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/deepscan"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/events"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/scanning"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/scheduler"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/topology"
)

func apiTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Scanning.ProbeConcurrency = 4
	cfg.Scanning.ConnectTimeout = 20 * time.Millisecond
	cfg.Scanning.ValidateTimeout = time.Second
	cfg.Scanning.ScanTimeout = 5 * time.Second
	cfg.Scanning.Retry.BaseDelay = time.Millisecond
	cfg.Topology.Seed = 42
	return cfg
}

// newTestServer builds a server whose scan pipeline never touches real
// sockets: the target is alive, port 21 is open, and the banner is a
// vulnerable ProFTPD.
func newTestServer(t *testing.T) (*Server, *events.Bus) {
	t.Helper()

	cfg := apiTestConfig()
	bus := events.NewBus()
	orch := scanning.New(cfg, bus)
	orch.SetAdapter(deepscan.NewSyntheticAdapter())

	orch.Validator().SetPingAvailable(func() bool { return false })
	orch.Validator().SetDialFunc(func(ctx context.Context, address string, timeout time.Duration) error {
		return syscall.ECONNREFUSED // refused proves liveness
	})
	orch.Prober().SetDialFunc(func(ctx context.Context, address string, timeout time.Duration) error {
		if address == "192.0.2.50:21" {
			return nil
		}
		return syscall.ECONNREFUSED
	})
	orch.Banners().SetGrabFunc(func(ctx context.Context, address string, timeout time.Duration) (string, error) {
		return "220 ProFTPD 1.3.3 Server ready.\r\n", nil
	})
	orch.SetHostNamer(staticHostNamer(""))
	orch.SetDeviceTyper(staticDeviceTyper(""))

	sched := scheduler.New(orch)
	t.Cleanup(sched.Stop)

	return New(cfg, orch, sched, bus), bus
}

type staticHostNamer string

func (s staticHostNamer) ReverseLookup(ctx context.Context, ip string) string { return string(s) }

type staticDeviceTyper string

func (s staticDeviceTyper) Identify(ctx context.Context, ip string) string { return string(s) }

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doJSON(t, server.Router(), http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doJSON(t, server.Router(), http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCreateScanValidation(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing target", ScanRequest{Type: "quick"}},
		{"missing type", ScanRequest{Target: "192.0.2.50"}},
		{"unknown type", ScanRequest{Target: "192.0.2.50", Type: "exhaustive"}},
		{"port out of range", ScanRequest{Target: "192.0.2.50", Type: "quick", Ports: []int{70000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := doJSON(t, server.Router(), http.MethodPost, "/api/v1/scans", tt.body)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
		})
	}
}

func TestCreateScanMalformedBody(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCreateQuickScan(t *testing.T) {
	server, _ := newTestServer(t)

	body := ScanRequest{Target: "192.0.2.50", Type: "quick", Ports: []int{21, 22, 80}}
	recorder := doJSON(t, server.Router(), http.MethodPost, "/api/v1/scans", body)

	require.Equal(t, http.StatusOK, recorder.Code)
	var result scanning.ScanResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))

	assert.Equal(t, scanning.StatusCompleted, result.Status)
	assert.Equal(t, scanning.TypeQuick, result.Type)
	assert.Equal(t, []int{21}, result.OpenPorts)
	assert.NotEmpty(t, result.Vulnerabilities)
	assert.NotEmpty(t, result.ScanID)
}

func TestCreateDeepScanUsesSyntheticAdapter(t *testing.T) {
	server, _ := newTestServer(t)

	body := ScanRequest{
		Target:  "192.0.2.50",
		Type:    "deep",
		Ports:   []int{21},
		Options: &deepscan.DepthOptions{MaxPorts: 5},
	}
	recorder := doJSON(t, server.Router(), http.MethodPost, "/api/v1/scans", body)

	require.Equal(t, http.StatusOK, recorder.Code)
	var result scanning.DeepScanResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))

	assert.Equal(t, scanning.StatusCompleted, result.Status)
	assert.Equal(t, scanning.TypeDeep, result.Type)
	assert.True(t, result.Statistics.SyntheticResult)
	assert.NotNil(t, result.PotentialExploits)
	assert.NotNil(t, result.ComplianceResults)
}

func TestScanProgressLifecycle(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doJSON(t, server.Router(), http.MethodGet, "/api/v1/scans/no-such-scan", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	body := ScanRequest{Target: "192.0.2.50", Type: "quick", Ports: []int{21}}
	recorder = doJSON(t, server.Router(), http.MethodPost, "/api/v1/scans", body)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result scanning.ScanResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))

	recorder = doJSON(t, server.Router(), http.MethodGet, "/api/v1/scans/"+result.ScanID, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var progress scanning.ScanProgress
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &progress))
	assert.Equal(t, scanning.StatusCompleted, progress.Status)
	assert.InDelta(t, 100.0, progress.PercentComplete, 0.001)
}

func TestCancelUnknownScan(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doJSON(t, server.Router(), http.MethodDelete, "/api/v1/scans/no-such-scan", nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestListScans(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doJSON(t, server.Router(), http.MethodGet, "/api/v1/scans", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Empty(t, body["active"])
}

func TestTopologyLayout(t *testing.T) {
	server, _ := newTestServer(t)

	body := LayoutRequest{
		Nodes: []topology.NetworkNode{
			{ID: "a", Address: "10.0.0.1", Status: topology.NodeStatusOnline},
			{ID: "b", Address: "10.0.0.2", Status: topology.NodeStatusOnline},
			{ID: "c", Address: "10.1.0.1", Status: topology.NodeStatusOffline},
		},
	}
	recorder := doJSON(t, server.Router(), http.MethodPost, "/api/v1/topology/layout", body)

	require.Equal(t, http.StatusOK, recorder.Code)
	var document map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &document))
	assert.Len(t, document["nodes"], 3)
	// a and b share a /24 so at least one edge is derived.
	assert.NotEmpty(t, document["edges"])
}

func TestTopologyLayoutRequiresNodes(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doJSON(t, server.Router(), http.MethodPost, "/api/v1/topology/layout", LayoutRequest{})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestScheduleLifecycle(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doJSON(t, server.Router(), http.MethodPost, "/api/v1/schedules", ScheduleRequest{
		Name: "nightly", Cron: "not a cron", Target: "192.0.2.50", Type: "quick",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(t, server.Router(), http.MethodPost, "/api/v1/schedules", ScheduleRequest{
		Name: "nightly", Cron: "0 2 * * *", Target: "192.0.2.50", Type: "quick",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))
	require.NotEmpty(t, created["id"])

	recorder = doJSON(t, server.Router(), http.MethodGet, "/api/v1/schedules", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var listed map[string][]scheduler.ScheduledScan
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &listed))
	require.Len(t, listed["schedules"], 1)
	assert.Equal(t, "nightly", listed["schedules"][0].Name)

	recorder = doJSON(t, server.Router(), http.MethodDelete, "/api/v1/schedules/"+created["id"], nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = doJSON(t, server.Router(), http.MethodDelete, "/api/v1/schedules/"+created["id"], nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doJSON(t, server.Router(), http.MethodDelete, "/api/v1/schedules/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestEventStreamDeliversPublishedEvents(t *testing.T) {
	server, bus := newTestServer(t)

	ts := httptest.NewServer(server.Router())
	defer ts.Close()
	defer server.stream.Shutdown()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return server.stream.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	bus.Publish(events.NewScanLaunched("test", "scan-1", "quick", "192.0.2.50"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var message StreamMessage
	require.NoError(t, json.Unmarshal(payload, &message))
	assert.Equal(t, string(events.TypeScanLaunched), message.Type)
	assert.Equal(t, "test", message.Source)
}

func TestEventStreamShutdownDisconnectsClients(t *testing.T) {
	server, _ := newTestServer(t)

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return server.stream.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	server.stream.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, server.stream.ClientCount())
}
