package cnpj

import (
	"encoding/json"
	"net/http"

	"github.com/getsentry/sentry-go"
)

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// Consultar handles GET /cnpj/{cnpj}: a stateless pass-through. Upstream
// body and status are relayed as-is; only a transport failure produces a
// response of our own.
func (h *Handler) Consultar(w http.ResponseWriter, r *http.Request) {
	body, status, err := h.client.Consultar(r.Context(), r.PathValue("cnpj"))
	if err != nil {
		sentry.CaptureException(err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Erro ao consultar CNPJ"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
