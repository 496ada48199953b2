package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"nextgen-mcp/agent"
	"nextgen-mcp/analysis"
	"nextgen-mcp/config"
	"nextgen-mcp/tools"
)

// Telegram rejects messages longer than 4096 characters after entity parsing.
const maxReplyRunes = 3900

const helpText = "Available commands:\n" +
	"/start - Start the bot\n" +
	"/help - Show this help message\n" +
	"/rewrite <text> - Rewrite text to the configured style guide\n" +
	"/check <text> - Score text\n" +
	"/suggestions <text> - List suggested changes\n" +
	"/status <workflow_id> <rewrite|check|suggestions> - Look up a workflow that timed out\n\n" +
	"Reply to a message with /rewrite, /check or /suggestions to analyze that message.\n" +
	"Anything else goes to the assistant, e.g. \"Is this paragraph too formal? ...\""

// runTelegram polls Telegram for updates until ctx is cancelled.
func runTelegram(ctx, workCtx context.Context, cfg *config.Config, gateway *tools.Gateway, logger *slog.Logger) error {
	logger = logger.With("component", "telegram")

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}
	logger.Info("telegram.authorized", "account", bot.Self.UserName)

	chatAgent := agent.New(cfg.OllamaModel, cfg.OllamaURL, gateway, logger)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			logger.Info("telegram.stopped")
			return nil
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			go handleMessage(workCtx, bot, chatAgent, gateway, cfg, logger, update.Message)
		}
	}
}

func handleMessage(
	ctx context.Context,
	bot *tgbotapi.BotAPI,
	chatAgent *agent.Agent,
	gateway *tools.Gateway,
	cfg *config.Config,
	logger *slog.Logger,
	message *tgbotapi.Message,
) {
	user := ""
	if message.From != nil {
		user = message.From.UserName
	}
	logger.Info("telegram.message", "user", user, "command", message.Command(), "chars", len(message.Text))

	msg := tgbotapi.NewMessage(message.Chat.ID, "")
	msg.ReplyToMessageID = message.MessageID

	switch command := message.Command(); command {
	case "start":
		msg.Text = "Hello! I analyze writing against a style guide.\n\n" +
			"I can:\n• Rewrite text\n• Score text for quality, clarity, grammar and tone\n• Suggest specific changes\n\n" +
			"Defaults: " + cfg.DefaultStyleGuide + " style guide, " + cfg.DefaultDialect + ", " + cfg.DefaultTone + " tone.\n" +
			"Use /help to see the commands."

	case "help":
		msg.Text = helpText

	case string(analysis.KindRewrite), string(analysis.KindCheck), string(analysis.KindSuggestions):
		text := commandText(message)
		if text == "" {
			msg.Text = fmt.Sprintf("Please provide text: /%s <text>, or reply to a message with /%s", command, command)
			break
		}
		res := gateway.Invoke(ctx, command, map[string]any{"text": text})
		msg.Text = preformatted(res.Text)
		msg.ParseMode = tgbotapi.ModeHTML

	case "status":
		fields := strings.Fields(message.CommandArguments())
		if len(fields) != 2 {
			msg.Text = "Usage: /status <workflow_id> <rewrite|check|suggestions>"
			break
		}
		res := gateway.Invoke(ctx, "workflow_status", map[string]any{
			"workflow_id":   fields[0],
			"workflow_type": fields[1],
		})
		msg.Text = preformatted(res.Text)
		msg.ParseMode = tgbotapi.ModeHTML

	case "":
		// Not a command, send to agent
		response, err := chatAgent.Chat(ctx, message.Text)
		if err != nil {
			logger.Error("telegram.agent_failed", "error", err.Error())
			msg.Text = "Sorry, I couldn't process that. Make sure Ollama is running."
		} else {
			msg.Text = truncateRunes(response, maxReplyRunes)
		}

	default:
		msg.Text = "Unknown command. Try /help"
	}

	if _, err := bot.Send(msg); err != nil {
		logger.Error("telegram.send_failed", "error", err.Error())
	}
}

// commandText returns the command arguments, or the text of the replied-to
// message when the command has none.
func commandText(message *tgbotapi.Message) string {
	if text := strings.TrimSpace(message.CommandArguments()); text != "" {
		return text
	}
	if message.ReplyToMessage != nil {
		return strings.TrimSpace(message.ReplyToMessage.Text)
	}
	return ""
}

// preformatted renders text as an escaped <pre> block for HTML parse mode.
func preformatted(text string) string {
	text = truncateRunes(text, maxReplyRunes)
	pre := &html.Node{Type: html.ElementNode, Data: "pre", DataAtom: atom.Pre}
	pre.AppendChild(&html.Node{Type: html.TextNode, Data: text})

	var b strings.Builder
	if err := html.Render(&b, pre); err != nil {
		return "<pre>" + html.EscapeString(text) + "</pre>"
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "\n…(truncated)"
}
