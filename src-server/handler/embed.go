package handler

import (
	"fmt"
	"strings"

	"emailtoics/src-server/ical"

	"github.com/bwmarrin/discordgo"
)

// Discord rejects embeds with more fields than this.
const maxEmbedFields = 25

// Preview of one event as a calendar client reads it back.
func eventEmbed(r ical.EventRecord) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       r.Summary,
		Description: r.Description,
		URL:         r.URL,
		Footer: &discordgo.MessageEmbedFooter{
			Text: r.UID,
		},
	}

	when := func(d *ical.DateTime) string {
		if d == nil {
			return "-"
		}
		if r.IsAllDay {
			return d.Wall().Format("Mon, 02 Jan 2006")
		}
		return d.Wall().Format("Mon, 02 Jan 2006 15:04")
	}
	zone := r.Timezone
	if r.IsAllDay {
		zone = "all day"
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Start", Value: when(r.DTStart), Inline: true},
		&discordgo.MessageEmbedField{Name: "End", Value: when(r.DTEnd), Inline: true},
		&discordgo.MessageEmbedField{Name: "Timezone", Value: zone, Inline: true},
	)
	if r.Location != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Location", Value: r.Location})
	}
	if r.Status == ical.StatusTentative {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Status", Value: "Tentative"})
	}
	return embed
}

func reportEmbed(report ical.Report) *discordgo.MessageEmbed {
	if report.Valid {
		return &discordgo.MessageEmbed{
			Title: "Valid calendar",
			Color: 0x2ecc71,
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Invalid calendar",
		Description: fmt.Sprintf("%d problem(s) found", len(report.Violations)),
		Color:       0xe74c3c,
	}
	for _, v := range report.Violations {
		if len(embed.Fields) == maxEmbedFields {
			break
		}
		name := string(v.Code)
		if v.Line > 0 {
			name = fmt.Sprintf("%s (line %d)", v.Code, v.Line)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  name,
			Value: strings.TrimSpace(v.Message),
		})
	}
	return embed
}
