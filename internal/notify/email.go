package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Message is one outgoing email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// AdminDirectory returns the addresses that receive staff alerts.
type AdminDirectory func(ctx context.Context) ([]string, error)

// EmailSink renders templated emails for events and hands them to a Mailer.
type EmailSink struct {
	mailer        Mailer
	admins        AdminDirectory
	fallbackAdmin string
	loc           *time.Location
	tmpl          *template.Template
}

func NewEmailSink(mailer Mailer, admins AdminDirectory, fallbackAdmin string, loc *time.Location) *EmailSink {
	if loc == nil {
		loc = time.UTC
	}
	s := &EmailSink{mailer: mailer, admins: admins, fallbackAdmin: fallbackAdmin, loc: loc}
	s.tmpl = template.Must(template.New("email").Funcs(template.FuncMap{
		"datetime": s.formatTime,
	}).Parse(emailTemplates))
	return s
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Send(ctx context.Context, event Event, p Payload) error {
	msgs, err := s.Compose(ctx, event, p)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return ErrSkipped
	}
	var sendErrs []error
	for _, m := range msgs {
		if err := s.mailer.Send(ctx, m); err != nil {
			sendErrs = append(sendErrs, fmt.Errorf("send %q to %s: %w", m.Subject, strings.Join(m.To, ","), err))
		}
	}
	return errors.Join(sendErrs...)
}

// Compose builds the emails for an event without sending them.
func (s *EmailSink) Compose(ctx context.Context, event Event, p Payload) ([]Message, error) {
	switch event {
	case EventRequestCreated:
		admins, err := s.adminRecipients(ctx)
		if err != nil {
			return nil, err
		}
		var out []Message
		if len(admins) > 0 {
			m, err := s.render(admins, "New support request from "+p.CustomerName, "request_created_admin", p)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		m, err := s.render([]string{p.CustomerEmail}, "We received your support request", "request_created_customer", p)
		if err != nil {
			return nil, err
		}
		return append(out, m), nil
	case EventRequestScheduled:
		return s.one(p.CustomerEmail, "Your support visit has been scheduled", "request_scheduled", p)
	case EventRequestRejected:
		return s.one(p.CustomerEmail, "Your support request was not approved", "request_rejected", p)
	case EventVisitCompleted:
		return s.one(p.CustomerEmail, "Please confirm your completed support visit", "visit_completed", p)
	case EventVisitRejected:
		return s.one(p.CustomerEmail, "Your support visit could not be completed", "visit_rejected", p)
	case EventVisitConfirmed:
		admins, err := s.adminRecipients(ctx)
		if err != nil || len(admins) == 0 {
			return nil, err
		}
		m, err := s.render(admins, "Visit confirmed by "+p.CustomerName, "visit_confirmed", p)
		if err != nil {
			return nil, err
		}
		return []Message{m}, nil
	}
	return nil, nil
}

func (s *EmailSink) one(to, subject, name string, p Payload) ([]Message, error) {
	if to == "" {
		return nil, nil
	}
	m, err := s.render([]string{to}, subject, name, p)
	if err != nil {
		return nil, err
	}
	return []Message{m}, nil
}

func (s *EmailSink) adminRecipients(ctx context.Context) ([]string, error) {
	var admins []string
	if s.admins != nil {
		found, err := s.admins(ctx)
		if err != nil {
			return nil, fmt.Errorf("look up admin emails: %w", err)
		}
		admins = found
	}
	if len(admins) == 0 && s.fallbackAdmin != "" {
		admins = []string{s.fallbackAdmin}
	}
	return admins, nil
}

func (s *EmailSink) render(to []string, subject, name string, p Payload) (Message, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, p); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}

func (s *EmailSink) formatTime(t *time.Time) string {
	if t == nil {
		return "to be confirmed"
	}
	return t.In(s.loc).Format("Mon, 02 Jan 2006 15:04 MST")
}
