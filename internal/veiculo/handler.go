// Package veiculo serves the fixed in-memory vehicle table that stands in
// for a real lookup provider.
package veiculo

import (
	"encoding/json"
	"net/http"

	"frota-api/internal/placas"
)

type Veiculo struct {
	Placa  string `json:"placa"`
	Marca  string `json:"marca"`
	Modelo string `json:"modelo"`
	Ano    string `json:"ano"`
	Cor    string `json:"cor"`
}

var veiculos = map[string]Veiculo{
	"FVV1985": {Marca: "FORD", Modelo: "KA", Ano: "2018", Cor: "PRATA"},
	"ABC1234": {Marca: "CHEVROLET", Modelo: "ONIX", Ano: "2020", Cor: "BRANCO"},
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Consultar handles GET /consulta-veiculo/{placa} against the fixed table.
func (h *Handler) Consultar(w http.ResponseWriter, r *http.Request) {
	placa := placas.Normalize(r.PathValue("placa"))

	veiculo, ok := veiculos[placa]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"erro": "Veículo não encontrado"})
		return
	}

	veiculo.Placa = placa
	writeJSON(w, http.StatusOK, veiculo)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
