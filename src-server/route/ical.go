package route

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"emailtoics/src-server/ical"
	"emailtoics/src-server/intake"
	"emailtoics/src-server/metric"
	"emailtoics/src-server/model"
	"emailtoics/src-server/utils"
)

type reviewRespBody struct {
	Token    string             `json:"token"`
	Subject  string             `json:"subject"`
	Filename string             `json:"filename"`
	Events   []ical.EventRecord `json:"events"`
	ICS      string             `json:"ics"`
}

type parseRespBody struct {
	ProdID string             `json:"prod_id,omitempty"`
	Method ical.Method        `json:"method,omitempty"`
	Events []ical.EventRecord `json:"events"`
}

// Build and serialize the document described by the request body.
func buildDocument(as *utils.AppState, r *http.Request) (intake.Request, ical.Document, string, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return intake.Request{}, ical.Document{}, "", err
	}
	req, err := intake.DecodeRequest(raw)
	if err != nil {
		return req, ical.Document{}, "", err
	}
	doc, err := as.Converter.Document(req, time.Now())
	if err != nil {
		return req, doc, "", err
	}

	startTimer := time.Now()
	ics, err := as.Engine.Serialize(doc)
	metric.CountDocument("serialize", err)
	if err != nil {
		return req, doc, "", err
	}
	as.MetricChans.Report(as.MetricChans.Serialize, float64(time.Since(startTimer).Microseconds()))
	return req, doc, ics, nil
}

func Ical(muxer *http.ServeMux, as *utils.AppState) {
	// serialize and download right away
	muxer.HandleFunc("POST /api/ics", Middleware(as, func(w http.ResponseWriter, r *http.Request) {
		_, doc, ics, err := buildDocument(as, r)
		if err != nil {
			writeError(w, err)
			return
		}
		writeCalendar(w, ical.AttachmentFilename(doc.Events), ics)
	}))

	// serialize and keep the result until it is confirmed
	muxer.HandleFunc("POST /api/ics/review", Middleware(as, func(w http.ResponseWriter, r *http.Request) {
		req, doc, ics, err := buildDocument(as, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if strings.TrimSpace(req.RecipientEmail) == "" {
			writeError(w, ical.NewValidationError("missing required field", "recipient_email"))
			return
		}

		// the preview is what a calendar client will read back
		preview, err := as.Engine.Parse(ics)
		metric.CountDocument("parse", err)
		if err != nil {
			writeError(w, ical.NewSerializationError("can't read back serialized document", map[string]any{"err": err}))
			return
		}

		invite := model.PendingInvite{
			ICSContent:     ics,
			RecipientEmail: req.RecipientEmail,
			EmailSubject:   ical.EmailSubject(doc.Events),
			Filename:       ical.AttachmentFilename(doc.Events),
		}
		startTimer := time.Now()
		token, err := invite.Put(r.Context(), as.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}
		as.MetricChans.Report(as.MetricChans.DatabaseWrite, float64(time.Since(startTimer).Microseconds()))

		writeJSON(w, http.StatusOK, reviewRespBody{
			Token:    token,
			Subject:  invite.EmailSubject,
			Filename: invite.Filename,
			Events:   preview,
			ICS:      ics,
		})
	}))

	// hand out a reviewed document, once
	muxer.HandleFunc("POST /api/ics/confirm/{token}", Middleware(as, func(w http.ResponseWriter, r *http.Request) {
		startTimer := time.Now()
		invite, err := model.TakePendingInvite(r.Context(), as.BunDB, r.PathValue("token"), as.Config.GetPendingTTL(), time.Now())
		metric.CountDocument("confirm", err)
		switch {
		case errors.Is(err, model.ErrPendingInviteNotFound):
			writeJSON(w, http.StatusNotFound, errorRespBody{Error: "unknown or already confirmed token"})
			return
		case errors.Is(err, model.ErrPendingInviteExpired):
			writeJSON(w, http.StatusGone, errorRespBody{Error: "token expired"})
			return
		case err != nil:
			writeError(w, err)
			return
		}
		as.MetricChans.Report(as.MetricChans.DatabaseRead, float64(time.Since(startTimer).Microseconds()))

		filename := invite.Filename
		if filename == "" {
			filename = ical.DefaultAttachmentFilename
		}
		deliverToDiscord(as, invite, filename)
		writeCalendar(w, filename, invite.ICSContent)
	}))

	muxer.HandleFunc("POST /api/ics/validate", Middleware(as, func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, err)
			return
		}
		report := ical.Validate(string(raw))
		if report.Valid {
			metric.CountDocument("validate", nil)
		} else {
			metric.CountDocument("validate", errors.New("invalid"))
		}
		writeJSON(w, http.StatusOK, report)
	}))

	muxer.HandleFunc("POST /api/ics/parse", Middleware(as, func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, err)
			return
		}
		doc, err := as.Engine.ParseDocument(string(raw))
		metric.CountDocument("parse", err)
		if err != nil {
			writeError(w, err)
			return
		}
		events := doc.Events
		if events == nil {
			events = []ical.EventRecord{}
		}
		writeJSON(w, http.StatusOK, parseRespBody{ProdID: doc.ProdID, Method: doc.Method, Events: events})
	}))
}

// Post a confirmed invite to DISCORD_DELIVERY_CHANNEL_ID, when configured.
// A failed delivery is logged; the invite is still served over HTTP.
func deliverToDiscord(as *utils.AppState, invite model.PendingInvite, filename string) {
	channelID := as.Config.GetDiscordDeliveryChannelID()
	if as.DgSession == nil || channelID == "" {
		return
	}
	startTimer := time.Now()
	if _, err := as.DgSession.ChannelFileSendWithMessage(
		channelID,
		fmt.Sprintf("**%s** for %s", invite.EmailSubject, invite.RecipientEmail),
		filename,
		strings.NewReader(invite.ICSContent),
	); err != nil {
		slog.Error("can't deliver invite to discord", "where", "route.deliverToDiscord", "error", err)
		return
	}
	as.MetricChans.Report(as.MetricChans.DiscordSendMessage, float64(time.Since(startTimer).Microseconds()))
}
