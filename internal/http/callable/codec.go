package callable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxBody = 64 << 10

type request struct {
	Data json.RawMessage `json:"data"`
}

type resultEnvelope struct {
	Result any `json:"result"`
}

type errorEnvelope struct {
	Error *Error `json:"error"`
}

// Decode lee {"data": ...} en dst. Un body vacío o data null dejan dst en cero.
func Decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		return ErrInvalidArgument.WithDetail("unreadable body").WithCause(err)
	}
	if len(body) > maxBody {
		return ErrInvalidArgument.WithDetail("body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return ErrInvalidArgument.WithDetail("malformed request").WithCause(err)
	}
	if len(req.Data) == 0 || string(req.Data) == "null" || dst == nil {
		return nil
	}
	if err := json.Unmarshal(req.Data, dst); err != nil {
		return ErrInvalidArgument.WithDetail("malformed data").WithCause(err)
	}
	return nil
}

// WriteResult escribe 200 {"result": v}.
func WriteResult(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resultEnvelope{Result: v})
}

// WriteError escribe el error con el status HTTP del código. La causa nunca se serializa.
func WriteError(w http.ResponseWriter, err error) {
	ce := FromError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(ce.Status.HTTPStatus())
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: &Error{
		Status:  ce.Status,
		Message: ce.Message,
		Detail:  ce.Detail,
	}})
}

// EncodeRequest arma el body {"data": v} del lado cliente.
func EncodeRequest(v any) ([]byte, error) {
	if v == nil {
		v = struct{}{}
	}
	return json.Marshal(map[string]any{"data": v})
}

// DecodeResponse interpreta una respuesta del lado cliente: con 2xx decodifica
// result en dst; si no, devuelve el *Error del body (o uno INTERNAL sintético).
func DecodeResponse(resp *http.Response, dst any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("callable: read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		var env errorEnvelope
		if json.Unmarshal(body, &env) == nil && env.Error != nil && env.Error.Status != "" {
			return env.Error
		}
		return New(StatusInternal, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	var env struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("callable: malformed response: %w", err)
	}
	if dst == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, dst); err != nil {
		return fmt.Errorf("callable: malformed result: %w", err)
	}
	return nil
}

// WriteMethodNotAllowed responde 405 con cuerpo de error del protocolo.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", http.MethodPost)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: &Error{
		Status:  StatusInvalidArgument,
		Message: "Callables must be invoked with POST.",
	}})
}
