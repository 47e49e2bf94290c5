package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Command defines a bot command with its handler key and Telegram menu description.
type Command struct {
	Name        string // Command name without slash (e.g., "start")
	Description string // Description shown in Telegram command menu
}

// botCommands defines all available bot commands.
// This is the single source of truth for command definitions.
var botCommands = []Command{
	{Name: "analyze", Description: "Analyze the staged photo"},
	{Name: "provider", Description: "Show or set the default analysis provider"},
	{Name: "status", Description: "Show the staged photo and analysis state"},
	{Name: "usage", Description: "Show FishCast API usage"},
	{Name: "reset", Description: "Discard the staged photo"},
	{Name: "forecast", Description: "Fishing forecast for a location"},
	{Name: "catch", Description: "Log a catch"},
	{Name: "catches", Description: "Show your catch log"},
	{Name: "health", Description: "Check the analysis service"},
	{Name: "version", Description: "Show version info"},
}

// RegisterCommands sets the bot's command menu in Telegram.
// This should be called once at startup.
func RegisterCommands(tg *tgbotapi.BotAPI) {
	commands := make([]tgbotapi.BotCommand, len(botCommands))
	for i, cmd := range botCommands {
		commands[i] = tgbotapi.BotCommand{
			Command:     cmd.Name,
			Description: cmd.Description,
		}
	}

	config := tgbotapi.NewSetMyCommands(commands...)
	if _, err := tg.Request(config); err != nil {
		log.Error().Err(err).Msg("failed to set bot commands")
	} else {
		log.Info().Int("count", len(commands)).Msg("registered bot commands")
	}
}
