package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/oracle-monitor/pkg/server/events"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func healthy() events.PriceEvent {
	return events.PriceEvent{
		Asset:             "BTC/USD",
		Price:             64000,
		Confidence:        95,
		IsValid:           true,
		SuccessfulSources: 3,
		TotalSources:      3,
	}
}

func newNotifier(t *testing.T, sender Sender, cooldown time.Duration) *Telegram {
	t.Helper()
	n, err := NewTelegramWithSender(sender, TelegramConfig{ChatID: 42, MinConfidence: 50, Cooldown: cooldown}, nil)
	require.NoError(t, err)
	return n
}

func TestTelegram_SkipsHealthyEvents(t *testing.T) {
	sender := &mockSender{}
	n := newNotifier(t, sender, 0)

	require.NoError(t, n.Publish(context.Background(), healthy()))
	sender.AssertNotCalled(t, "Send", mock.Anything)
}

func TestTelegram_AlertsOnAnomaly(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 42 && strings.Contains(msg.Text, "BTC/USD anomaly")
	})).Return(nil).Once()
	n := newNotifier(t, sender, 0)

	event := healthy()
	event.IsValid = false
	event.DeviationPercent = 48
	event.RecentAverage = 43000

	require.NoError(t, n.Publish(context.Background(), event))
	sender.AssertExpectations(t)
}

func TestTelegram_AlertsOnLowConfidence(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything).Return(nil).Once()
	n := newNotifier(t, sender, 0)

	event := healthy()
	event.Confidence = 20

	require.NoError(t, n.Publish(context.Background(), event))
	sender.AssertExpectations(t)
}

func TestTelegram_Cooldown(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything).Return(nil).Twice()
	n := newNotifier(t, sender, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	n.now = func() time.Time { return now }

	event := healthy()
	event.LowTrust = true

	require.NoError(t, n.Publish(context.Background(), event))
	require.NoError(t, n.Publish(context.Background(), event))
	sender.AssertNumberOfCalls(t, "Send", 1)

	now = now.Add(2 * time.Minute)
	require.NoError(t, n.Publish(context.Background(), event))
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestTelegram_SendFailureDoesNotStartCooldown(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything).Return(errors.New("network")).Once()
	sender.On("Send", mock.Anything).Return(nil).Once()
	n := newNotifier(t, sender, time.Hour)

	event := healthy()
	event.IsValid = false

	assert.Error(t, n.Publish(context.Background(), event))
	assert.NoError(t, n.Publish(context.Background(), event))
	sender.AssertExpectations(t)
}

func TestFormatAlert_ListsFailures(t *testing.T) {
	event := healthy()
	event.Confidence = 10
	event.Failures = map[string]string{"okx": "timeout", "bybit": "status 500"}

	text := FormatAlert(event)
	assert.Contains(t, text, "low confidence")
	assert.Contains(t, text, "Failed: bybit, okx")
}

func TestNewTelegram_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	start := time.Now()
	_, err := NewTelegram(TelegramConfig{
		BotToken:    "token",
		ChatID:      42,
		Timeout:     50 * time.Millisecond,
		APIEndpoint: server.URL + "/bot%s/%s",
	}, nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewTelegram_Validation(t *testing.T) {
	_, err := NewTelegram(TelegramConfig{}, nil)
	assert.ErrorIs(t, err, ErrTokenRequired)

	_, err = NewTelegramWithSender(&mockSender{}, TelegramConfig{}, nil)
	assert.ErrorIs(t, err, ErrChatRequired)
}
