package placas

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// Consultar handles GET /consulta-placa/{placa}: normalizes the raw plate,
// authenticates against the provider and relays the lookup result verbatim.
func (h *Handler) Consultar(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("placa")
	if strings.TrimSpace(raw) == "" {
		writeErro(w, http.StatusBadRequest, "Placa não informada")
		return
	}

	placa := Normalize(raw)
	if !ValidPlate(placa) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"erro":          "Placa deve conter 7 caracteres",
			"placaRecebida": raw,
			"placaLimpa":    placa,
		})
		return
	}

	body, status, err := h.client.Lookup(r.Context(), placa)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			var detalhes any
			_ = json.Unmarshal(upstream.Body, &detalhes)
			writeJSON(w, upstream.StatusCode, map[string]any{
				"erro":     upstream.Message(),
				"detalhes": detalhes,
			})
			return
		}

		sentry.CaptureException(err)
		writeErro(w, http.StatusInternalServerError, "Erro ao consultar placa")
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

func writeErro(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"erro": message})
}
