package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/db"
)

// StartTelegramBot long-polls the bot until ctx is done. A message holding a
// link starts a podcast; /list replies with the user's podcasts and feed.
func (h *Handlers) StartTelegramBot(ctx context.Context, token string) error {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("failed to start telegram bot: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil { // ignore any non-Message updates
				continue
			}

			m := update.Message
			log.Printf("[%s] %s", m.From.UserName, m.Text)
			reply := h.BotReply(ctx, m.From.ID, m.From.UserName, m.Command(), m.Text)

			msg := tgbotapi.NewMessage(m.Chat.ID, reply)
			msg.ParseMode = "HTML"
			if _, err := bot.Send(msg); err != nil {
				log.Printf("Error sending telegram reply: %v", err)
			}
		}
	}
}

// BotReply handles one bot message and returns the HTML reply.
func (h *Handlers) BotReply(ctx context.Context, telegramID int64, username, command, text string) string {
	user, err := db.UpsertUser(ctx, telegramID, username)
	if err != nil {
		log.Printf("Error finding or creating user: %v", err)
		return "Error creating user."
	}

	switch command {
	case "start", "help":
		return "Send me a link to an article and I will turn it into a podcast. Use /list to see your podcasts."
	case "list":
		jobs, err := h.pipeline.List(ctx, user.ID)
		if err != nil {
			log.Printf("Error listing podcasts: %v", err)
			return "Internal server error"
		}
		if len(jobs) == 0 {
			return "You have no podcasts yet."
		}

		var b strings.Builder
		for _, job := range jobs {
			title := job.Title
			if title == "" {
				title = job.Source
			}
			fmt.Fprintf(&b, "<b>%s</b>: %s\n", html.EscapeString(title), job.Status())
		}
		fmt.Fprintf(&b, "\nFeed: %s/rss/%s", strings.TrimRight(h.baseURL, "/"), user.RSSUUID)
		return b.String()
	case "":
	default:
		return "I don't know that command"
	}

	source := strings.TrimSpace(text)
	if err := validateSourceURL(source); err != nil {
		return "Please send a link starting with http:// or https://. PDFs can be uploaded in the app."
	}

	job, err := h.pipeline.Create(ctx, user.ID, source)
	if err == nil {
		err = h.enqueueExtract(ctx, job)
	}
	if err != nil {
		log.Printf("Error creating podcast from bot: %v", err)
		return "Could not start the podcast, please try again later."
	}
	return "Working on it! Your podcast will appear in /list and in your feed when it is ready."
}
