package notifier

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"
)

// CommandHandler answers one chat command; an empty reply sends nothing.
type CommandHandler func(command string) string

const pollTimeoutSeconds = 30

var errForeignChat = errors.New("message from another chat")

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling long-polls getUpdates and dispatches each message to handler
// until ctx is cancelled. Only the configured chat is served.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	var offset int64
	for ctx.Err() == nil {
		var updates []update
		err := t.call(ctx, "getUpdates", map[string]interface{}{
			"offset":          offset,
			"timeout":         pollTimeoutSeconds,
			"allowed_updates": []string{"message"},
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn().Err(err).Msg("telegram polling")
			sleep(ctx, 5*time.Second)
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if err := t.dispatch(ctx, u, handler); err != nil {
				log.Warn().Err(err).Int64("update_id", u.UpdateID).Msg("skip update")
			}
		}
	}
	log.Info().Msg("telegram polling stopped")
}

func (t *TelegramNotifier) dispatch(ctx context.Context, u update, handler CommandHandler) error {
	if u.Message == nil {
		return nil
	}
	text := strings.TrimSpace(u.Message.Text)
	if text == "" {
		return nil
	}
	if strconv.FormatInt(u.Message.Chat.ID, 10) != t.ChatID {
		return errForeignChat
	}
	log.Info().Str("command", text).Msg("received command")
	reply := handler(text)
	if reply == "" {
		return nil
	}
	return t.Send(ctx, reply)
}
