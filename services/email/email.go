// Package emailsvc delivers core.EmailMessage values through the console, SendGrid or an in-memory mock.
package emailsvc

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
)

// sender delivers one rendered message.
type sender interface {
	send(msg core.EmailMessage) error
}

// Service renders & sends messages in the background. Use Wait to let pending messages through before exiting.
type Service struct {
	conf   *core.Config
	logger core.Logger
	sender sender
	wg     sync.WaitGroup
}

var _ core.EmailService = (*Service)(nil)

func newService(conf *core.Config, logger core.Logger, s sender) *Service {
	return &Service{conf: conf, logger: logger, sender: s}
}

func (svc *Service) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.wg.Add(1)
		go func(msg *core.EmailMessage) {
			defer svc.wg.Done()
			if err := deliver(svc.conf, svc.sender, msg); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email %q: %v", msg.Subject, err), err)
			}
		}(msg)
	}
}

// Wait blocks until all the messages handed to SendMessages are sent.
func (svc *Service) Wait() {
	svc.wg.Wait()
}

// deliver renders msg & sends it if it has somewhere to go & something to say.
func deliver(conf *core.Config, s sender, msg *core.EmailMessage) error {
	if err := msg.Render(conf); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return nil
	}
	return s.send(*msg)
}

func subjectPrefix(conf *core.Config) string {
	return "[" + conf.AppName + "] "
}
