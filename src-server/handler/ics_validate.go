package handler

import (
	"context"
	"fmt"
	"time"

	"emailtoics/src-server/ical"
	"emailtoics/src-server/metric"
	"emailtoics/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

func IcsValidate(as *utils.AppState) {
	id := "ics-validate"
	as.AddAppCmdHandler(id, icsValidateHandler(as))
	as.AddAppCmdInfo(id, &discordgo.ApplicationCommand{
		Name:        id,
		Description: "Check the structure of a calendar file.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionAttachment,
				Name:        "file",
				Description: "The .ics file to check",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "text",
				Description: "The calendar text to check, when there is no file",
				Required:    false,
			},
		},
	})
}

func icsValidateHandler(as *utils.AppState) func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
		data := i.ApplicationCommandData()

		var text string
		for _, opt := range data.Options {
			switch opt.Name {
			case "file":
				attachmentID, _ := opt.Value.(string)
				if data.Resolved == nil || data.Resolved.Attachments[attachmentID] == nil {
					return utils.InteractRespHiddenReply(s, i, "Can't find the attached file")
				}
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				content, err := utils.FetchAttachment(ctx, data.Resolved.Attachments[attachmentID].URL, as.Config.GetMaxBodyBytes())
				cancel()
				if err != nil {
					if respErr := utils.InteractRespHiddenReply(s, i, "Can't download the attached file"); respErr != nil {
						return respErr
					}
					return fmt.Errorf("icsValidateHandler: %w", err)
				}
				text = content
			case "text":
				if text == "" {
					text = opt.StringValue()
				}
			}
		}
		if text == "" {
			return utils.InteractRespHiddenReply(s, i, "Attach a .ics file or paste its text")
		}

		report := ical.Validate(text)
		if report.Valid {
			metric.CountDocument("validate", nil)
		} else {
			metric.CountDocument("validate", fmt.Errorf("%d violations", len(report.Violations)))
		}

		startTimer := time.Now()
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Flags:  discordgo.MessageFlagsEphemeral,
				Embeds: []*discordgo.MessageEmbed{reportEmbed(report)},
			},
		}); err != nil {
			return fmt.Errorf("icsValidateHandler: can't respond: %w", err)
		}
		as.MetricChans.Report(as.MetricChans.DiscordSendMessage, float64(time.Since(startTimer).Microseconds()))
		return nil
	}
}

// Register every slash command.
func Init(as *utils.AppState) {
	Ping(as)
	Ics(as)
	IcsValidate(as)
}
