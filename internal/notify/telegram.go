package notify

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Telegram rejects messages longer than 4096 characters. Keeping only the
// tail of the log keeps every edit under the limit on long runs; the oldest
// lines are the least interesting anyway.
const maxProgressLines = 30

// progressLog is one user's progress display: the accumulated lines plus
// the id of the Telegram message being edited in place.
type progressLog struct {
	lines     []string
	messageID int
}

// append adds one line and returns the text to render, truncated to the
// last maxProgressLines lines.
func (pl *progressLog) append(line string) string {
	pl.lines = append(pl.lines, line)
	if len(pl.lines) > maxProgressLines {
		pl.lines = pl.lines[len(pl.lines)-maxProgressLines:]
	}
	return strings.Join(pl.lines, "\n")
}

// TelegramSink renders a session's progress as a single edited-in-place
// message, terminal outcomes as standalone messages, and delivers finished
// reports as document uploads.
type TelegramSink struct {
	api *tgbotapi.BotAPI

	mu   sync.Mutex
	logs map[int64]*progressLog
}

func NewTelegramSink(api *tgbotapi.BotAPI) *TelegramSink {
	return &TelegramSink{
		api:  api,
		logs: make(map[int64]*progressLog),
	}
}

func (s *TelegramSink) Notify(userID int64, line string) {
	s.mu.Lock()
	pl, ok := s.logs[userID]
	if !ok {
		pl = &progressLog{}
		s.logs[userID] = pl
	}
	text := pl.append(line)
	messageID := pl.messageID
	s.mu.Unlock()

	if messageID == 0 {
		sent, err := s.api.Send(tgbotapi.NewMessage(userID, text))
		if err != nil {
			log.Errorf("❌ Failed to send progress message to user %d: %v", userID, err)
			return
		}
		s.mu.Lock()
		pl.messageID = sent.MessageID
		s.mu.Unlock()
		return
	}

	if _, err := s.api.Send(tgbotapi.NewEditMessageText(userID, messageID, text)); err != nil {
		log.Errorf("❌ Failed to edit progress message for user %d: %v", userID, err)
	}
}

func (s *TelegramSink) Clear(userID int64) {
	s.mu.Lock()
	delete(s.logs, userID)
	s.mu.Unlock()
}

func (s *TelegramSink) NotifyUser(userID int64, text string, isError bool) {
	if isError {
		text = "❌ " + text
	}
	if _, err := s.api.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		log.Errorf("❌ Failed to send message to user %d: %v", userID, err)
	}
}

// Deliver uploads the exported report file to the user.
func (s *TelegramSink) Deliver(location string, userID int64) error {
	doc := tgbotapi.NewDocument(userID, tgbotapi.FilePath(location))
	if _, err := s.api.Send(doc); err != nil {
		return fmt.Errorf("failed to deliver report %s to user %d: %w", location, userID, err)
	}
	log.Infof("📤 Delivered report %s to user %d", location, userID)
	return nil
}
