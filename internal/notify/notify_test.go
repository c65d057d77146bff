package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/gomail.v2"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/logger"
)

type captureDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *captureDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)

	return d.err
}

func sample() (*booking.BufferEntry, *booking.Booking) {
	//nolint:exhaustruct
	entry := &booking.BufferEntry{
		ID:         7,
		PropertyID: "seaview",
		RoomTypeID: "deluxe",
		CheckIn:    time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC),
		Rooms:      1,
		AmountPaid: 240,
	}

	//nolint:exhaustruct
	b := &booking.Booking{Reference: "SEA-20260402-0001", Guest: booking.Guest{Name: "Ada", Email: "ada@example.com"}}

	return entry, b
}

func TestMailerSendsStaffEmail(t *testing.T) {
	d := &captureDialer{} //nolint:exhaustruct
	//nolint:exhaustruct
	m := &Mailer{l: logger.Discard(), conf: SMTPConf{From: "desk@hotel.test", To: "ops@hotel.test"}, dialer: d}

	entry, b := sample()
	require.NoError(t, m.BufferEntryCreated(context.Background(), entry, b))
	require.Len(t, d.sent, 1)

	assert.Equal(t, []string{"ops@hotel.test"}, d.sent[0].GetHeader("To"))
	assert.Contains(t, d.sent[0].GetHeader("Subject")[0], "SEA-20260402-0001")

	var raw bytes.Buffer
	_, err := d.sent[0].WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "240.00")
}

func TestMailerReportsSendFailure(t *testing.T) {
	d := &captureDialer{err: errors.New("connection refused")} //nolint:exhaustruct
	//nolint:exhaustruct
	m := &Mailer{l: logger.Discard(), conf: SMTPConf{To: "ops@hotel.test"}, dialer: d}

	entry, b := sample()
	err := m.BufferEntryCreated(context.Background(), entry, b)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "ops@hotel.test"))
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer

	l, err := logger.New(logger.Conf{Output: &buf})
	require.NoError(t, err)

	entry, b := sample()
	require.NoError(t, NewLog(l).BufferEntryCreated(context.Background(), entry, b))
	assert.Contains(t, buf.String(), "Buffer entry 7 needs staff")
	assert.Contains(t, buf.String(), "SEA-20260402-0001")
}
