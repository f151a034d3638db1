package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/valuegrid/internal/engine"
	"github.com/sells-group/valuegrid/internal/parcel"
	"github.com/sells-group/valuegrid/internal/render"
	"github.com/sells-group/valuegrid/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Run) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	pt := func(lon, lat, v float64) parcel.Record {
		return parcel.Record{Geometry: geom.NewPointFlat(geom.XY, []float64{lon, lat}), Value: parcel.NewValue(v)}
	}
	res, err := engine.Run([]parcel.Record{
		pt(-71.10, 42.30, 300000),
		pt(-71.06, 42.33, 650000),
		pt(-71.03, 42.36, 1200000),
	}, engine.DefaultHeatOptions())
	require.NoError(t, err)

	run, err := st.SaveRun(context.Background(), store.RunInput{Name: "boston", Mode: "grid-zones", Result: res})
	require.NoError(t, err)

	ts := httptest.NewServer(New(st).Handler())
	t.Cleanup(ts.Close)
	return ts, run
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec,noctx
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestListRuns(t *testing.T) {
	ts, run := newTestServer(t)

	tests := []struct {
		name   string
		query  string
		status int
		count  int
	}{
		{name: "all", query: "", status: http.StatusOK, count: 1},
		{name: "mode filter", query: "?mode=grid_zones", status: http.StatusOK, count: 1},
		{name: "other mode", query: "?mode=choropleth", status: http.StatusOK, count: 0},
		{name: "bad mode", query: "?mode=hexbin", status: http.StatusBadRequest},
		{name: "bad limit", query: "?limit=abc", status: http.StatusBadRequest},
		{name: "negative offset", query: "?offset=-1", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, ts.URL+"/runs"+tt.query)
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}
			var runs []store.Run
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
			assert.Len(t, runs, tt.count)
			if tt.count > 0 {
				assert.Equal(t, run.ID, runs[0].ID)
			}
		})
	}
}

func TestGetRun(t *testing.T) {
	ts, run := newTestServer(t)

	resp := get(t, ts.URL+"/runs/"+run.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got store.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "boston", got.Name)
	require.NotNil(t, got.Result)
	assert.Len(t, got.Result.Zones, run.ZoneCount)

	missing := get(t, ts.URL+"/runs/does-not-exist")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestZonesGeoJSON(t *testing.T) {
	ts, run := newTestServer(t)

	resp := get(t, ts.URL+"/runs/"+run.ID+"/zones.geojson")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, run.ZoneCount)

	missing := get(t, ts.URL+"/runs/nope/zones.geojson")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestLegend(t *testing.T) {
	ts, run := newTestServer(t)

	resp := get(t, ts.URL+"/runs/"+run.ID+"/legend")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []render.LegendEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	assert.Len(t, entries, 4)
	assert.Equal(t, 0, entries[0].Class)
}

func TestDeleteRun(t *testing.T) {
	ts, run := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/runs/"+run.ID, nil) //nolint:noctx
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	again := get(t, ts.URL+"/runs/"+run.ID)
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestCORS(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	h := New(st, WithAllowedOrigins([]string{"https://maps.example.com"})).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://maps.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
