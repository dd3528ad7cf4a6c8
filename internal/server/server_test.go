package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ppiankov/varscore/internal/config"
	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/pipeline"
	"github.com/ppiankov/varscore/internal/variant"
)

// caddClient answers every variant with a fixed CADD phred
type caddClient struct{ phred float64 }

func (c caddClient) Name() string { return config.SourceMyVariant }

func (c caddClient) Fetch(_ context.Context, _ variant.Identifier) model.SourceResult {
	return model.Succeeded(config.SourceMyVariant, map[string]model.Value{
		"cadd.phred": model.NumberValue(c.phred),
	}, 1)
}

func newTestServer(t *testing.T, maxBatch int) *httptest.Server {
	t.Helper()
	p, err := pipeline.New(config.Default(), nil, pipeline.WithClients(caddClient{phred: 20}))
	require.NoError(t, err)

	ts := httptest.NewServer(New(p, maxBatch, nil).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, 10)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body HealthResponse
	decode(t, resp, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []string{config.SourceMyVariant}, body.Sources)
}

func TestAnnotate(t *testing.T) {
	ts := newTestServer(t, 10)

	resp, err := http.Get(ts.URL + "/annotate/rs80357906")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "rs80357906", body["input"])

	sc := body["score"].(map[string]interface{})
	// CADD 20/40 plus frequency 1 (myvariant answered without an af)
	assert.InDelta(t, (0.35*0.5+0.20*1.0)/0.55, sc["value"], 1e-9)
}

func TestAnnotate_EscapedHGVS(t *testing.T) {
	ts := newTestServer(t, 10)

	resp, err := http.Get(ts.URL + "/annotate/chr1:g.12345A%3EG")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "chr1:g.12345A>G", body["input"])
}

func TestAnnotate_Unrecognized(t *testing.T) {
	ts := newTestServer(t, 10)

	resp, err := http.Get(ts.URL + "/annotate/not-a-variant")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, CodeUnrecognized, body.Code)
	require.NotNil(t, body.Report)
	assert.Equal(t, "not-a-variant", body.Report.Input)
}

func TestPosition(t *testing.T) {
	ts := newTestServer(t, 10)

	resp, err := http.Get(ts.URL + "/position/1/12345/a/g")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "chr1:g.12345A>G", body["input"])

	for _, path := range []string{"/position/1/abc/A/G", "/position/1/0/A/G"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestBatch(t *testing.T) {
	ts := newTestServer(t, 10)

	resp, err := http.Post(ts.URL+"/batch", "application/json",
		strings.NewReader(`{"variants":["rs1","bogus","chr2:g.100C>T"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Reports []struct {
			Input   string         `json:"input"`
			Failure *model.Failure `json:"error"`
		} `json:"reports"`
		Summary pipeline.Summary `json:"summary"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Reports, 3)
	assert.Equal(t, "bogus", body.Reports[1].Input)
	require.NotNil(t, body.Reports[1].Failure)
	assert.Equal(t, model.FailureUnrecognized, body.Reports[1].Failure.Kind)
	assert.Nil(t, body.Reports[2].Failure)

	assert.Equal(t, 3, body.Summary.Total)
	assert.Equal(t, 2, body.Summary.Annotated)
	assert.Equal(t, 1, body.Summary.Unrecognized)
}

func TestBatch_CSV(t *testing.T) {
	ts := newTestServer(t, 10)

	resp, err := http.Post(ts.URL+"/batch?format=csv", "application/json",
		strings.NewReader(`{"variants":["rs1","rs2"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	df, err := pipeline.ReadTable(resp.Body)
	require.NoError(t, err)
	ids, err := pipeline.ColumnValues(df, pipeline.ColumnVariantID)
	require.NoError(t, err)
	assert.Equal(t, []string{"rs1", "rs2"}, ids)
}

func TestBatch_Rejects(t *testing.T) {
	ts := newTestServer(t, 2)

	tests := map[string]string{
		"malformed": `{"variants":`,
		"empty":     `{"variants":[]}`,
		"too large": `{"variants":["rs1","rs2","rs3"]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/batch", "application/json", strings.NewReader(body))
			require.NoError(t, err)

			var e ErrorResponse
			decode(t, resp, &e)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, e.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, 10)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeInternalError)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	p, err := pipeline.New(config.Default(), nil, pipeline.WithClients())
	require.NoError(t, err)

	cfg := config.Default().Server
	cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, New(p, 10, nil).ListenAndServe(ctx, cfg))
}
