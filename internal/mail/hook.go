package mail

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrorHook mails error level log entries to the site administrators.
type ErrorHook struct {
	dispatcher Dispatcher
	admins     []string
	subject    string
}

func NewErrorHook(dispatcher Dispatcher, admins []string, subject string) *ErrorHook {
	return &ErrorHook{dispatcher: dispatcher, admins: admins, subject: subject}
}

func (h *ErrorHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

func (h *ErrorHook) Fire(entry *logrus.Entry) error {
	if len(h.admins) == 0 {
		return nil
	}
	text, err := entry.String()
	if err != nil {
		text = fmt.Sprintf("%s: %s", entry.Level, entry.Message)
	}
	// a stopped dispatcher drops the notification; the entry itself is still logged
	_ = h.dispatcher.Send(Message{
		To:      h.admins,
		Subject: h.subject,
		Text:    text,
	})
	return nil
}

var _ logrus.Hook = (*ErrorHook)(nil)
