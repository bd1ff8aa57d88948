package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tailtribe/internal/platform/logger"
)

// MaxBodyBytes limita el tamaño de los bodies JSON de entrada.
const MaxBodyBytes = 1 << 20

var ErrInvalidJSON = errors.New("invalid json")

type errorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: msg})
}

// WriteInternalError loguea la causa con el logger del request y responde
// 500 sin exponerla al cliente.
func WriteInternalError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Error("request failed", map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"error":  err,
	})
	WriteError(w, http.StatusInternalServerError, "internal error")
}

// DecodeJSON decodifica el body rechazando campos desconocidos.
// Un body vacío se trata como "{}".
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return ErrInvalidJSON
	}
	return nil
}
