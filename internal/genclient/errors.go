// errors.go — ошибки обращения к сервису генерации.
package genclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// RemoteError — сервис ответил, но не успехом: non-2xx статус,
// тело с полем error или тело, которое не удалось разобрать.
// Message передаётся пользователю без изменений; пустой Message
// означает, что сервис не прислал причину.
type RemoteError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: сервис вернул статус %d: %s: %v", e.Op, e.StatusCode, msg, e.Err)
	}
	return fmt.Sprintf("%s: сервис вернул статус %d: %s", e.Op, e.StatusCode, msg)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// NetworkError — сервис недоступен: ошибка транспорта, таймаут,
// обрыв соединения.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: сервис недоступен: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// parseRemoteError разбирает тело ошибки. Понимает три формы:
// {"error": "..."}, {"error": {"code": "...", "message": "..."}}
// и {"message": "..."}.
func parseRemoteError(op string, status int, raw []byte) *RemoteError {
	e := &RemoteError{
		Op:         op,
		StatusCode: status,
		Body:       strings.TrimSpace(string(raw)),
	}
	e.Code, e.Message = extractErrorMessage(raw)
	return e
}

// extractErrorMessage возвращает код и сообщение ошибки из JSON-тела.
func extractErrorMessage(raw []byte) (code, message string) {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", ""
	}

	if len(env.Error) > 0 {
		var s string
		if err := json.Unmarshal(env.Error, &s); err == nil && strings.TrimSpace(s) != "" {
			return "", strings.TrimSpace(s)
		}
		var obj struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Error, &obj); err == nil && strings.TrimSpace(obj.Message) != "" {
			return strings.TrimSpace(obj.Code), strings.TrimSpace(obj.Message)
		}
	}
	return "", strings.TrimSpace(env.Message)
}
