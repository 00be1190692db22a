package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"emailtoics/src-server/ical"

	"github.com/go-playground/validator/v10"
)

// A request to build one calendar document.
type Request struct {
	Events         json.RawMessage `json:"events"`
	FromEmail      string          `json:"from_email,omitempty" validate:"omitempty,email"`
	Method         string          `json:"method,omitempty" validate:"omitempty,oneof=PUBLISH REQUEST publish request"`
	ProdID         string          `json:"prod_id,omitempty"`
	RecipientEmail string          `json:"recipient_email,omitempty" validate:"omitempty,email"`
}

// Decode a request body. A bare event object or array, without the
// surrounding request, is accepted as the events of an empty request.
func DecodeRequest(raw []byte) (Request, error) {
	raw = bytes.TrimSpace(raw)
	var req Request
	if len(raw) > 0 && raw[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			return req, ical.NewMalformedInputError("body", string(raw), fmt.Errorf("can't decode request: %w", err))
		}
		if _, ok := probe["events"]; ok {
			if err := json.Unmarshal(raw, &req); err != nil {
				return req, ical.NewMalformedInputError("body", string(raw), fmt.Errorf("can't decode request: %w", err))
			}
			return req, nil
		}
	}
	req.Events = json.RawMessage(raw)
	return req, nil
}

// Build the Document described by req. ref anchors relative dates.
func (c *Converter) Document(req Request, ref time.Time) (ical.Document, error) {
	if err := c.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fieldPath(fe.Namespace()))
			}
			return ical.Document{}, ical.NewValidationError("invalid request", fields...)
		}
		return ical.Document{}, err
	}

	events, err := DecodeEvents(req.Events)
	if err != nil {
		return ical.Document{}, err
	}
	records, err := c.ToRecords(events, ref)
	if err != nil {
		return ical.Document{}, err
	}
	return ical.Document{
		ProdID:    req.ProdID,
		Method:    ical.Method(strings.ToUpper(req.Method)),
		Events:    records,
		FromEmail: req.FromEmail,
	}, nil
}
