package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/cmlabs-hris/kpi-backend-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	calls int
	addr  string
	to    []string
	msg   string
}

func (c *captured) send(fail int) sendFunc {
	return func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		c.calls++
		c.addr, c.to, c.msg = addr, to, string(msg)
		if c.calls <= fail {
			return errors.New("connection refused")
		}
		return nil
	}
}

func testConfig() config.SMTPConfig {
	return config.SMTPConfig{Host: "smtp.test", Port: 2525, From: "kpi@test", FromName: "KPI"}
}

func TestSendNotification(t *testing.T) {
	c := &captured{}
	s, err := newEmailService(testConfig(), c.send(0))
	require.NoError(t, err)

	err = s.SendNotification(context.Background(), Message{
		To:            "owner@test",
		RecipientName: "Rina",
		Title:         "KPI value rejected",
		Body:          "Your KPI value was rejected at the section stage.",
		Reason:        "missing evidence",
		Link:          "http://app/kpi-values/1",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, c.calls)
	assert.Equal(t, "smtp.test:2525", c.addr)
	assert.Equal(t, []string{"owner@test"}, c.to)
	assert.Contains(t, c.msg, "Subject: KPI value rejected\r\n")
	assert.Contains(t, c.msg, "missing evidence")
	assert.Contains(t, c.msg, "Hello Rina")
}

func TestSendReminder(t *testing.T) {
	c := &captured{}
	s, err := newEmailService(testConfig(), c.send(0))
	require.NoError(t, err)

	require.NoError(t, s.SendReminder(context.Background(), "head@test", nil, ""))
	assert.Equal(t, 0, c.calls)

	items := []ReminderItem{{Label: "Sales target", Stage: "section", Since: "2025-01-02"}}
	require.NoError(t, s.SendReminder(context.Background(), "head@test", items, ""))
	assert.Equal(t, 1, c.calls)
	assert.Contains(t, c.msg, "Sales target")
	assert.Contains(t, c.msg, "Subject: 1 item(s) waiting for your approval")
}

func TestSendRetries(t *testing.T) {
	c := &captured{}
	s, err := newEmailService(testConfig(), c.send(2))
	require.NoError(t, err)
	s.backoff = 0

	require.NoError(t, s.SendNotification(context.Background(), Message{To: "x@test", Title: "t"}))
	assert.Equal(t, 3, c.calls)

	c2 := &captured{}
	s2, err := newEmailService(testConfig(), c2.send(5))
	require.NoError(t, err)
	s2.backoff = 0

	err = s2.SendNotification(context.Background(), Message{To: "x@test", Title: "t"})
	require.Error(t, err)
	assert.Equal(t, maxRetries, c2.calls)
}

func TestSendSkippedWithoutHost(t *testing.T) {
	c := &captured{}
	s, err := newEmailService(config.SMTPConfig{}, c.send(0))
	require.NoError(t, err)

	require.NoError(t, s.SendNotification(context.Background(), Message{To: "x@test", Title: "t"}))
	assert.Equal(t, 0, c.calls)
}
