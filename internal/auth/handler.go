package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	Usuario string `json:"usuario"`
	Senha   string `json:"senha"`
}

type loginResponse struct {
	Message   string `json:"message"`
	Usuario   string `json:"usuario"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// Login handles POST /login with the legacy {usuario, senha} body and the
// legacy Portuguese status messages. The token field is an addition; clients
// that only read message/usuario keep working.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Dados obrigatórios")
		return
	}

	body.Usuario = strings.TrimSpace(body.Usuario)
	body.Senha = strings.TrimSpace(body.Senha)
	if body.Usuario == "" || body.Senha == "" {
		writeMessage(w, http.StatusBadRequest, "Dados obrigatórios")
		return
	}

	result, err := h.service.Login(r.Context(), body.Usuario, body.Senha)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeMessage(w, http.StatusUnauthorized, "Usuário ou senha inválidos")
			return
		}
		var lockedErr ErrLoginLocked
		if errors.As(err, &lockedErr) {
			retryAfter := int(time.Until(lockedErr.Until).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeMessage(w, http.StatusTooManyRequests, "Muitas tentativas de login")
			return
		}

		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "Erro no servidor")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:   "Login realizado com sucesso",
		Usuario:   result.Usuario,
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn,
	})
}

// Verificar handles GET /auth/verificar behind the bearer middleware; if the
// request got this far the token is valid.
func (h *Handler) Verificar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"usuario": UsuarioIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
