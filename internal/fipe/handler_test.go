package fipe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upstreamCall struct {
	path         string
	query        string
	subscription string
}

func newUpstream(t *testing.T, body string) (*httptest.Server, *upstreamCall) {
	t.Helper()

	call := &upstreamCall{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call.path = r.URL.Path
		call.query = r.URL.RawQuery
		call.subscription = r.Header.Get("X-Subscription-Token")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, call
}

func doRequest(h *Handler, fn http.HandlerFunc, target string, pathValues map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	for key, value := range pathValues {
		r.SetPathValue(key, value)
	}
	rec := httptest.NewRecorder()
	fn(rec, r)
	return rec
}

func TestBrandsRelaysUpstream(t *testing.T) {
	upstream, call := newUpstream(t, `[{"code":"23","name":"VW - VolksWagen"}]`)
	h := NewHandler(NewClient(upstream.URL, "sub-token"))

	rec := doRequest(h, h.Brands, "/fipe/cars/brands", map[string]string{"tipo": "cars"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"code":"23","name":"VW - VolksWagen"}]`, rec.Body.String())
	assert.Equal(t, "/cars/brands", call.path)
	assert.Equal(t, "sub-token", call.subscription)
}

func TestBrandsRejectsUnknownVehicleType(t *testing.T) {
	upstream, call := newUpstream(t, `[]`)
	h := NewHandler(NewClient(upstream.URL, ""))

	rec := doRequest(h, h.Brands, "/fipe/boats/brands", map[string]string{"tipo": "boats"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Tipo de veículo inválido", body["erro"])
	assert.Empty(t, call.path)
}

func TestPriceForwardsFullPathAndReference(t *testing.T) {
	upstream, call := newUpstream(t, `{"price":"R$ 32.000,00"}`)
	h := NewHandler(NewClient(upstream.URL, ""))

	rec := doRequest(h, h.Price, "/fipe/cars/brands/23/models/5940/years/2018-1?reference=308", map[string]string{
		"tipo": "cars", "brand": "23", "model": "5940", "year": "2018-1",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/cars/brands/23/models/5940/years/2018-1", call.path)
	assert.Equal(t, "reference=308", call.query)
}

func TestReferencesOmitsEmptySubscriptionHeader(t *testing.T) {
	upstream, call := newUpstream(t, `[{"code":"308","month":"abril de 2024"}]`)
	h := NewHandler(NewClient(upstream.URL, ""))

	rec := doRequest(h, h.References, "/fipe/references", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/references", call.path)
	assert.Empty(t, call.subscription)
}

func TestRelayTransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client := NewClient(upstream.URL, "")
	upstream.Close()

	h := NewHandler(client)
	rec := doRequest(h, h.References, "/fipe/references", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Erro ao consultar tabela FIPE")
}
