// Copyright 2025 Emrys Liu
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package notify delivers the run report by email.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	mail "github.com/wneessen/go-mail"
	"gitlab.com/tozd/go/errors"

	"github.com/emrysliu/ftptransfer/pkg/config"
)

// sendTimeout bounds one SMTP conversation.
const sendTimeout = 10 * time.Second

// 🔌 Notifier delivers one run report. Implementations must treat
// enabled=false as a silent no-op.
type Notifier interface {
	Notify(ctx context.Context, enabled bool, subject, body string, isHTML bool) error
}

// 📧 Mailer sends reports over SMTP with implicit SSL, the way the
// classic port-465 submission works.
type Mailer struct {
	cfg config.EmailConfig
}

// 🏭 NewMailer creates a Mailer for the given email configuration
func NewMailer(cfg config.EmailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) Notify(ctx context.Context, enabled bool, subject, body string, isHTML bool) error {
	logger := zerolog.Ctx(ctx)

	if !enabled {
		logger.Info().Msg("email notification disabled, not sending")
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.Sender); err != nil {
		return errors.Errorf("setting sender: %w", err)
	}
	if err := msg.To(m.cfg.Recipients...); err != nil {
		return errors.Errorf("setting recipients: %w", err)
	}
	msg.Subject(subject)

	if isHTML {
		msg.SetBodyString(mail.TypeTextPlain, htmlToPlain(body))
		msg.AddAlternativeString(mail.TypeTextHTML, body)
	} else {
		msg.SetBodyString(mail.TypeTextPlain, body)
	}

	client, err := mail.NewClient(m.cfg.SMTPServer,
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.SMTPUsername),
		mail.WithPassword(m.cfg.SMTPPassword),
		mail.WithTimeout(sendTimeout),
	)
	if err != nil {
		return errors.Errorf("creating smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Errorf("sending notification: %w", err)
	}

	logger.Info().Int("recipients", len(m.cfg.Recipients)).Msg("email notification sent")
	return nil
}

// 🔇 Nop is a Notifier that does nothing; used in tests and when no
// email section is configured.
type Nop struct{}

func (Nop) Notify(ctx context.Context, enabled bool, subject, body string, isHTML bool) error {
	return nil
}
