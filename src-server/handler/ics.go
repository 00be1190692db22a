package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"emailtoics/src-server/ical"
	"emailtoics/src-server/intake"
	"emailtoics/src-server/metric"
	"emailtoics/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/olebedev/when"
)

func Ics(as *utils.AppState) {
	id := "ics"
	as.AddAppCmdHandler(id, icsHandler(as))
	as.AddAppCmdInfo(id, &discordgo.ApplicationCommand{
		Name:        id,
		Description: "Create a calendar invite file.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "The title of the event",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "start",
				Description: "When the event starts, e.g. \"2024-06-03 14:00\" or \"next friday 3pm\"",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "end",
				Description: "When the event ends",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "whole-day",
				Description: "The event lasts the whole day",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "timezone",
				Description: "IANA timezone, e.g. Europe/Berlin",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "location",
				Description: "Location of the event",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "url",
				Description: "Link of the event",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "description",
				Description: "Detailed description of the event",
				Required:    false,
			},
		},
	})
}

type icsOptions struct {
	Title       string
	Start       string
	End         string
	WholeDay    bool
	Timezone    string
	Location    string
	URL         string
	Description string
}

func icsOptionsFrom(options []*discordgo.ApplicationCommandInteractionDataOption) icsOptions {
	var opts icsOptions
	for _, opt := range options {
		switch opt.Name {
		case "title":
			opts.Title = utils.CleanupString(opt.StringValue())
		case "start":
			opts.Start = opt.StringValue()
		case "end":
			opts.End = opt.StringValue()
		case "whole-day":
			opts.WholeDay = opt.BoolValue()
		case "timezone":
			opts.Timezone = strings.TrimSpace(opt.StringValue())
		case "location":
			opts.Location = opt.StringValue()
		case "url":
			opts.URL = strings.TrimSpace(opt.StringValue())
		case "description":
			opts.Description = opt.StringValue()
		}
	}
	return opts
}

// Split a free text moment into the date and time strings of an extracted
// event. Strict formats are passed through untouched.
func splitMoment(w *when.Parser, field, value string, wholeDay bool, ref time.Time) (string, string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", nil
	}
	if _, err := ical.ParseDateTime(value); err == nil {
		return value, "", nil
	}
	result, err := w.Parse(value, ref)
	if err != nil {
		return "", "", ical.NewMalformedInputError(field, value, err)
	}
	if result == nil {
		return "", "", ical.NewMalformedInputError(field, value, nil)
	}
	date := result.Time.Format("2006-01-02")
	if wholeDay {
		return date, "", nil
	}
	return date, result.Time.Format("15:04"), nil
}

type invite struct {
	ics      string
	filename string
	preview  []ical.EventRecord
}

// Serialize the event described by the command options, and read it back for
// the preview. now anchors relative dates.
func buildInvite(as *utils.AppState, opts icsOptions, now time.Time) (invite, error) {
	ref := now
	if loc, err := time.LoadLocation(opts.Timezone); opts.Timezone != "" && err == nil {
		ref = now.In(loc)
	} else if loc, err := time.LoadLocation(as.Engine.Config().DefaultTimezone); err == nil {
		ref = now.In(loc)
	}

	ev := intake.ExtractedEvent{
		Summary:     opts.Title,
		Location:    opts.Location,
		Description: opts.Description,
		Timezone:    opts.Timezone,
		URL:         opts.URL,
		IsAllDay:    opts.WholeDay,
	}
	var err error
	if ev.StartDate, ev.StartTime, err = splitMoment(as.When, "start", opts.Start, opts.WholeDay, ref); err != nil {
		return invite{}, err
	}
	if ev.EndDate, ev.EndTime, err = splitMoment(as.When, "end", opts.End, opts.WholeDay, ref); err != nil {
		return invite{}, err
	}

	record, err := as.Converter.ToRecord(ev, ref)
	if err != nil {
		return invite{}, err
	}

	startTimer := time.Now()
	ics, err := as.Engine.Serialize(ical.Document{Events: []ical.EventRecord{record}})
	metric.CountDocument("serialize", err)
	if err != nil {
		return invite{}, err
	}
	as.MetricChans.Report(as.MetricChans.Serialize, float64(time.Since(startTimer).Microseconds()))

	preview, err := as.Engine.Parse(ics)
	metric.CountDocument("parse", err)
	if err != nil {
		return invite{}, err
	}
	return invite{
		ics:      ics,
		filename: ical.AttachmentFilename(preview),
		preview:  preview,
	}, nil
}

// A user mistake is answered privately; anything else is a handler error.
func replyInputError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) error {
	var (
		validationErr *ical.ValidationError
		malformedErr  *ical.MalformedInputError
	)
	switch {
	case errors.As(err, &validationErr):
		return utils.InteractRespHiddenReply(s, i, fmt.Sprintf("Missing or invalid: %s", strings.Join(validationErr.Fields, ", ")))
	case errors.As(err, &malformedErr):
		return utils.InteractRespHiddenReply(s, i, fmt.Sprintf("I can't read %q (%s)", malformedErr.Value, malformedErr.Field))
	default:
		if respErr := utils.InteractRespHiddenReply(s, i, "Something went wrong while creating the invite"); respErr != nil {
			slog.Warn("replyInputError: can't respond", "error", respErr)
		}
		return err
	}
}

func icsHandler(as *utils.AppState) func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
		opts := icsOptionsFrom(i.ApplicationCommandData().Options)
		inv, err := buildInvite(as, opts, time.Now())
		if err != nil {
			return replyInputError(s, i, err)
		}

		embeds := make([]*discordgo.MessageEmbed, 0, len(inv.preview))
		for _, r := range inv.preview {
			embeds = append(embeds, eventEmbed(r))
		}

		startTimer := time.Now()
		if err := utils.InteractRespICSFile(s, i, inv.filename, inv.ics, embeds); err != nil {
			return fmt.Errorf("icsHandler: can't respond: %w", err)
		}
		as.MetricChans.Report(as.MetricChans.DiscordSendMessage, float64(time.Since(startTimer).Microseconds()))
		return nil
	}
}
