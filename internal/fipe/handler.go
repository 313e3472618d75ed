package fipe

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/getsentry/sentry-go"
)

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// References handles GET /fipe/references.
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, "/references")
}

// Brands handles GET /fipe/{tipo}/brands.
func (h *Handler) Brands(w http.ResponseWriter, r *http.Request) {
	tipo, ok := vehicleType(w, r)
	if !ok {
		return
	}
	h.relay(w, r, fmt.Sprintf("/%s/brands", tipo))
}

// Models handles GET /fipe/{tipo}/brands/{brand}/models.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	tipo, ok := vehicleType(w, r)
	if !ok {
		return
	}
	h.relay(w, r, fmt.Sprintf("/%s/brands/%s/models",
		tipo, url.PathEscape(r.PathValue("brand"))))
}

// Years handles GET /fipe/{tipo}/brands/{brand}/models/{model}/years.
func (h *Handler) Years(w http.ResponseWriter, r *http.Request) {
	tipo, ok := vehicleType(w, r)
	if !ok {
		return
	}
	h.relay(w, r, fmt.Sprintf("/%s/brands/%s/models/%s/years",
		tipo, url.PathEscape(r.PathValue("brand")), url.PathEscape(r.PathValue("model"))))
}

// Price handles GET /fipe/{tipo}/brands/{brand}/models/{model}/years/{year}.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	tipo, ok := vehicleType(w, r)
	if !ok {
		return
	}
	h.relay(w, r, fmt.Sprintf("/%s/brands/%s/models/%s/years/%s",
		tipo, url.PathEscape(r.PathValue("brand")), url.PathEscape(r.PathValue("model")),
		url.PathEscape(r.PathValue("year"))))
}

func (h *Handler) relay(w http.ResponseWriter, r *http.Request, path string) {
	body, status, err := h.client.Get(r.Context(), path, r.URL.Query().Get("reference"))
	if err != nil {
		sentry.CaptureException(err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"erro": "Erro ao consultar tabela FIPE"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func vehicleType(w http.ResponseWriter, r *http.Request) (string, bool) {
	tipo := r.PathValue("tipo")
	if !VehicleTypes[tipo] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"erro": "Tipo de veículo inválido"})
		return "", false
	}
	return tipo, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
