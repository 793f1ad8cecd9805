package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSendUnconfigured(t *testing.T) {
	m := New(Config{}, zap.NewNop())
	err := m.Send(context.Background(), "to@example.com", "Hi", "<p>hi</p>")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendBuildsMessage(t *testing.T) {
	m := New(Config{
		Host: "smtp.example.com",
		Port: "587",
		From: "noreply@example.com",
	}, zap.NewNop())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err := m.Send(context.Background(), "invitee@example.com", "You're invited", "<p>join us</p>")
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"invitee@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: You're invited\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/html")
	assert.Contains(t, gotMsg, "<p>join us</p>")
}

func TestSendRelayFailure(t *testing.T) {
	m := New(Config{Host: "smtp.example.com", Port: "587"}, zap.NewNop())
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}

	err := m.Send(context.Background(), "to@example.com", "Hi", "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConfigured)
}

func TestDefaultFrom(t *testing.T) {
	m := New(Config{Host: "smtp.example.com"}, zap.NewNop())
	assert.Equal(t, "noreply@short.ly", m.cfg.From)
}
