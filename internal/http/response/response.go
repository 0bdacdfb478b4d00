package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"admissions/internal/common"
)

type envelope struct {
	Success bool       `json:"succes"`
	Data    any        `json:"donnees,omitempty"`
	Error   *errorBody `json:"erreur,omitempty"`
}

type errorBody struct {
	Code    common.Code       `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"champs,omitempty"`
}

// ErrorCollector counts failed responses by error code.
type ErrorCollector interface {
	IncError(code string)
}

var errorCollector ErrorCollector

// SetErrorCollector is called once at startup, before serving.
func SetErrorCollector(collector ErrorCollector) {
	errorCollector = collector
}

const internalMessage = "erreur interne"

func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, envelope{Success: true, Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Error(w http.ResponseWriter, err error) {
	var appErr *common.Error
	if !errors.As(err, &appErr) {
		appErr = common.NewError(common.CodeInternal, internalMessage, err)
	}
	status := StatusFor(appErr.Code)
	body := &errorBody{Code: appErr.Code, Message: appErr.Message, Fields: appErr.Fields}
	if status >= http.StatusInternalServerError && appErr.Code == common.CodeInternal {
		body.Message = internalMessage
	}
	if rec, ok := w.(*Recorder); ok {
		rec.err = err
	}
	if errorCollector != nil {
		errorCollector.IncError(string(appErr.Code))
	}
	write(w, status, envelope{Error: body})
}

func StatusFor(code common.Code) int {
	switch code {
	case common.CodeValidation:
		return http.StatusBadRequest
	case common.CodeUnauthorized:
		return http.StatusUnauthorized
	case common.CodeForbidden:
		return http.StatusForbidden
	case common.CodeNotFound:
		return http.StatusNotFound
	case common.CodeConflict:
		return http.StatusConflict
	case common.CodeRateLimited:
		return http.StatusTooManyRequests
	case common.CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
