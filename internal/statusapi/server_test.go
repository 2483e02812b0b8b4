package statusapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moos-bridge/internal/bridge"
	"moos-bridge/internal/core/network"
	"moos-bridge/internal/engine"
	"moos-bridge/internal/mailbox"
	"moos-bridge/internal/message"
	"moos-bridge/internal/simpleapp"
)

type idleEngine struct{}

func (idleEngine) Notify(string, message.Value) error { return nil }
func (idleEngine) Register(string, float64) error     { return nil }
func (idleEngine) Run(ctx context.Context, _ engine.RunSpec, _ engine.Dispatcher) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestServer(t *testing.T, ps network.PubSub) (*http.ServeMux, *bridge.Host, *bridge.Dispatcher) {
	t.Helper()
	mb := mailbox.New()
	reg := bridge.NewRegistry()
	h, err := bridge.New(idleEngine{}, simpleapp.New(mb, time.Hour, zerolog.Nop()), bridge.Options{
		Name:          "Simple",
		Subscriptions: []string{"Double", "String"},
		Mailbox:       mb,
		Registry:      reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	mux := http.NewServeMux()
	NewServer(h, ps, "moos.", zerolog.Nop()).Register(mux)
	return mux, h, bridge.NewDispatcher(reg, zerolog.Nop())
}

func get(mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatusShowsLatestReport(t *testing.T) {
	mux, h, d := newTestServer(t, nil)

	rec := get(mux, "/api/bridge/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var before map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	assert.Equal(t, false, before["has_report"])
	assert.Equal(t, "Simple", before["app"])

	want, err := d.OnReportRequested(context.Background(), h.Session())
	require.NoError(t, err)

	rec = get(mux, "/api/bridge/status")
	var after map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Equal(t, true, after["has_report"])
	assert.Equal(t, want, after["report"])
	assert.Equal(t, []any{"Double", "String"}, after["subscriptions"])
}

func TestInboundShowsMailboxSnapshot(t *testing.T) {
	mux, h, d := newTestServer(t, nil)
	require.NoError(t, d.OnMailReceived(context.Background(), h.Session(), message.Batch{
		"Double": message.Numeric(2),
		"String": message.Textual("hi"),
	}))

	rec := get(mux, "/api/bridge/inbound")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Inbound map[string]valueView `json:"inbound"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, valueView{Kind: "numeric", Value: 2.0}, body.Inbound["Double"])
	assert.Equal(t, valueView{Kind: "textual", Value: "hi"}, body.Inbound["String"])
}

func TestRejectsWrongMethodAndRoutes(t *testing.T) {
	mux, _, _ := newTestServer(t, network.NewMemoryPubSub())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bridge/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.Equal(t, http.StatusNotFound, get(mux, "/api/bridge/topic/Double").Code)
	assert.Equal(t, http.StatusNotFound, get(mux, "/api/bridge/topic/Double/stream/extra").Code)
}

func TestTopicStreamWithoutTransport(t *testing.T) {
	mux, _, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(mux, "/api/bridge/topic/Double/stream").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	mux, _, _ := newTestServer(t, nil)
	rec := get(mux, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestTopicStreamRelaysValues(t *testing.T) {
	ps := network.NewMemoryPubSub()
	defer ps.Close()
	mux, _, _ := newTestServer(t, ps)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/bridge/topic/Double/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload, err := message.Encode("peer", "Double", message.Numeric(5), time.Now())
	require.NoError(t, err)
	require.NoError(t, ps.Publish("moos.Double", payload))

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			Name   string    `json:"name"`
			Source string    `json:"source"`
			Value  valueView `json:"value"`
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		assert.Equal(t, "Double", ev.Name)
		assert.Equal(t, "peer", ev.Source)
		assert.Equal(t, valueView{Kind: "numeric", Value: 5.0}, ev.Value)
		return
	}
	t.Fatalf("stream ended without data: %v", scanner.Err())
}

func TestStatusReportsTransportState(t *testing.T) {
	ps := network.NewMemoryPubSub()
	defer ps.Close()
	mux, _, _ := newTestServer(t, ps)

	ps.SetOnline(false)
	var body map[string]any
	require.NoError(t, json.Unmarshal(get(mux, "/api/bridge/status").Body.Bytes(), &body))
	assert.Equal(t, false, body["online"])
	assert.NotContains(t, body, "peers")
}
