package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"emailtoics/src-server/model"
	"emailtoics/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

func Ping(as *utils.AppState) {
	id := "ping"
	as.AddAppCmdHandler(id, pingHandler(as))
	as.AddAppCmdInfo(id, &discordgo.ApplicationCommand{
		Name:        id,
		Description: "Show the state of the invite service.",
	})
}

// Health of the invite service: engine settings, review queue and latency.
func statusEmbed(ctx context.Context, as *utils.AppState, heartbeat time.Duration) *discordgo.MessageEmbed {
	cfg := as.Engine.Config()

	pending := "unknown"
	if n, err := model.CountPendingInvites(ctx, as.BunDB); err != nil {
		slog.Warn("statusEmbed: can't count pending invites", "error", err)
	} else {
		pending = strconv.Itoa(n)
	}

	return &discordgo.MessageEmbed{
		Title: "Pong!",
		Footer: &discordgo.MessageEmbedFooter{
			Text: cfg.ProdID,
		},
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Uptime",
				Value: as.GetUptime().String(),
			},
			{
				Name:   "Pending invites",
				Value:  pending,
				Inline: true,
			},
			{
				Name:   "Invite lifetime",
				Value:  as.Config.GetPendingTTL().String(),
				Inline: true,
			},
			{
				Name:   "Latency",
				Value:  fmt.Sprintf("%dms", heartbeat.Milliseconds()),
				Inline: true,
			},
			{
				Name:   "Default timezone",
				Value:  cfg.DefaultTimezone,
				Inline: true,
			},
			{
				Name:   "All-day end",
				Value:  string(cfg.AllDayEnd),
				Inline: true,
			},
			{
				Name:   "UID policy",
				Value:  string(cfg.UIDPolicy),
				Inline: true,
			},
		},
	}
}

func pingHandler(as *utils.AppState) func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		embed := statusEmbed(ctx, as, s.HeartbeatLatency())

		startTimer := time.Now()
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Flags:  discordgo.MessageFlagsEphemeral,
				Embeds: []*discordgo.MessageEmbed{embed},
			},
		}); err != nil {
			return fmt.Errorf("pingHandler: can't respond: %w", err)
		}
		as.MetricChans.Report(as.MetricChans.DiscordSendMessage, float64(time.Since(startTimer).Microseconds()))
		return nil
	}
}
