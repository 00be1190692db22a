package route

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"emailtoics/src-server/ical"
)

type errorRespBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
	Line   int      `json:"line,omitempty"`
}

// Map an engine error to its status code:
// bad input 400, unreadable calendar 422, everything else 500.
func statusOf(err error) int {
	var (
		validationErr *ical.ValidationError
		malformedErr  *ical.MalformedInputError
		parseErr      *ical.ParseError
		maxBytesErr   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &validationErr), errors.As(err, &malformedErr):
		return http.StatusBadRequest
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	body := errorRespBody{Error: err.Error()}
	var (
		validationErr *ical.ValidationError
		parseErr      *ical.ParseError
	)
	if errors.As(err, &validationErr) {
		body.Fields = validationErr.Fields
	}
	if errors.As(err, &parseErr) {
		body.Line = parseErr.Line
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "where", "route.writeError", "error", err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	respBodyJson, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Can't marshal response body"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(respBodyJson)
}

func writeCalendar(w http.ResponseWriter, filename, ics string) {
	w.Header().Set("Content-Type", ical.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ics))
}
