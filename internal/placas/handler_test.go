package placas

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerRequest(placa string) (*httptest.ResponseRecorder, *http.Request) {
	// The raw plate may contain characters that are invalid in a request
	// target; the handler only reads the path value.
	r := httptest.NewRequest(http.MethodGet, "/consulta-placa/x", nil)
	r.SetPathValue("placa", placa)
	return httptest.NewRecorder(), r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestConsultarRejectsShortPlate(t *testing.T) {
	h := NewHandler(newTestClient(newFakeProvider(t)))

	rec, req := newHandlerRequest("AB-12")
	h.Consultar(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Placa deve conter 7 caracteres", body["erro"])
	assert.Equal(t, "AB-12", body["placaRecebida"])
	assert.Equal(t, "AB12", body["placaLimpa"])
}

func TestConsultarRejectsBlankPlate(t *testing.T) {
	h := NewHandler(newTestClient(newFakeProvider(t)))

	rec, req := newHandlerRequest("   ")
	h.Consultar(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Placa não informada", decodeBody(t, rec)["erro"])
}

func TestConsultarRelaysUpstreamSuccess(t *testing.T) {
	p := newFakeProvider(t)
	h := NewHandler(newTestClient(p))

	rec, req := newHandlerRequest("fv-v1985")
	h.Consultar(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"placa":"FVV1985","marca":"FORD"}`, rec.Body.String())

	// The upstream received the normalized plate.
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, []string{"placa"}, p.lookupSeen)
}

func TestConsultarAuthFailureIs500(t *testing.T) {
	p := newFakeProvider(t)
	p.authStatus = http.StatusUnauthorized
	p.authBody = `{}`
	h := NewHandler(newTestClient(p))

	rec, req := newHandlerRequest("FVV1985")
	h.Consultar(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Erro ao consultar placa", decodeBody(t, rec)["erro"])
}

func TestConsultarRelaysUpstreamError(t *testing.T) {
	p := newFakeProvider(t)
	p.lookup = func(payload map[string]string) (int, string) {
		return http.StatusNotFound, `{"erro":"Placa não encontrada","codigo":42}`
	}
	h := NewHandler(newTestClient(p))

	rec, req := newHandlerRequest("FVV1985")
	h.Consultar(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Placa não encontrada", body["erro"])

	detalhes, ok := body["detalhes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), detalhes["codigo"])
}

func TestConsultarTransportFailureIs500(t *testing.T) {
	p := newFakeProvider(t)
	c := newTestClient(p)
	c.cache.Set("tok", time.Hour, time.Now())
	p.server.Close()
	h := NewHandler(c)

	rec, req := newHandlerRequest("FVV1985")
	h.Consultar(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Erro ao consultar placa", decodeBody(t, rec)["erro"])
}
