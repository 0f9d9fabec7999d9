package notify

import (
	log "github.com/sirupsen/logrus"
)

// ProgressSink receives the ordered progress lines of one user's run. Lines
// are appended in call order; Clear drops the user's progress display when
// the session ends.
type ProgressSink interface {
	Notify(userID int64, line string)
	Clear(userID int64)
}

// MessageSink delivers terminal and ad-hoc outcomes to the user.
type MessageSink interface {
	NotifyUser(userID int64, text string, isError bool)
}

// LogSink renders both sinks onto the process log, for headless runs and
// tests.
type LogSink struct{}

func (LogSink) Notify(userID int64, line string) {
	log.Infof("[user %d] %s", userID, line)
}

func (LogSink) Clear(userID int64) {}

func (LogSink) NotifyUser(userID int64, text string, isError bool) {
	if isError {
		log.Errorf("[user %d] %s", userID, text)
		return
	}
	log.Infof("[user %d] %s", userID, text)
}
