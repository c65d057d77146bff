// Package notify tells staff about bookings that need manual handling.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	gomail "gopkg.in/gomail.v2"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/logger"
)

type SMTPConf struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer emails the staff inbox.
type Mailer struct {
	l      *logger.Logger
	conf   SMTPConf
	dialer dialer
}

func NewMailer(l *logger.Logger, conf SMTPConf) *Mailer {
	return &Mailer{
		l:      l,
		conf:   conf,
		dialer: gomail.NewDialer(conf.Host, conf.Port, conf.User, conf.Password),
	}
}

var bufferTemplate = template.Must(template.New("buffer").Parse(`<p>A late payment was accepted for booking <b>{{.Booking.Reference}}</b>
but the room has been sold in the meantime.</p>
<ul>
<li>Guest: {{.Booking.Guest.Name}} {{.Booking.Guest.Email}} {{.Booking.Guest.Phone}}</li>
<li>Room type: {{.Entry.PropertyID}} / {{.Entry.RoomTypeID}} x{{.Entry.Rooms}}</li>
<li>Stay: {{.Entry.CheckIn.Format "2006-01-02"}} to {{.Entry.CheckOut.Format "2006-01-02"}}</li>
<li>Paid: {{printf "%.2f" .Entry.AmountPaid}}</li>
</ul>
<p>Buffer entry #{{.Entry.ID}} waits for resolution.</p>`))

func (m *Mailer) BufferEntryCreated(_ context.Context, entry *booking.BufferEntry, b *booking.Booking) error {
	var body bytes.Buffer

	if err := bufferTemplate.Execute(&body, struct {
		Entry   *booking.BufferEntry
		Booking *booking.Booking
	}{Entry: entry, Booking: b}); err != nil {
		return fmt.Errorf("render buffer entry email: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.conf.From)
	msg.SetHeader("To", m.conf.To)
	msg.SetHeader("Subject", fmt.Sprintf("Action needed: booking %s paid after resale", b.Reference))
	msg.SetBody("text/html", body.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send buffer entry email to %s: %w", m.conf.To, err)
	}

	m.l.LogInfo("Staff notified about buffer entry %d", entry.ID)

	return nil
}

// Log writes notifications to the log when no mail server is configured.
type Log struct {
	l *logger.Logger
}

func NewLog(l *logger.Logger) *Log {
	return &Log{l: l}
}

func (n *Log) BufferEntryCreated(_ context.Context, entry *booking.BufferEntry, b *booking.Booking) error {
	n.l.WithField("reference", b.Reference).LogWarnf(
		"Buffer entry %d needs staff: %d rooms of %s/%s %s..%s, paid %.2f",
		entry.ID,
		entry.Rooms,
		entry.PropertyID,
		entry.RoomTypeID,
		entry.CheckIn.Format("2006-01-02"),
		entry.CheckOut.Format("2006-01-02"),
		entry.AmountPaid,
	)

	return nil
}
