package utils

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// =========================================================
// Pre-built discordgo interaction responses for convenience
// =========================================================

// Send a hidden reply to the interaction.
// For a hidden non-reply, use `s.ChannelMessageSend(i.ChannelID, "content")`
func InteractRespHiddenReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:   discordgo.MessageFlagsEphemeral,
			Content: content,
		},
	})
}

// Reply with a calendar file and its preview embeds.
func InteractRespICSFile(s *discordgo.Session, i *discordgo.InteractionCreate, filename, ics string, embeds []*discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: embeds,
			Files: []*discordgo.File{
				{
					Name:        filename,
					ContentType: "text/calendar",
					Reader:      strings.NewReader(ics),
				},
			},
		},
	})
}
