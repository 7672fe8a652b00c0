package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

const telegramTextLimit = 4096

// sender is the part of *tele.Bot used here.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type TelegramConfig struct {
	Token      string
	ChatID     int64
	ThreadID   int
	RatePerSec int
	Timeout    time.Duration
}

// Telegram posts job output to a chat. Recipients, when given, are chat IDs.
type Telegram struct {
	bot      sender
	chatID   int64
	threadID int
	limiter  *rate.Limiter
}

// NewTelegram builds an offline bot: no getMe round trip and no poller, since
// the scheduler only ever sends.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return newTelegram(b, cfg), nil
}

func newTelegram(bot sender, cfg TelegramConfig) *Telegram {
	rps := max(1, cfg.RatePerSec)
	return &Telegram{
		bot:      bot,
		chatID:   cfg.ChatID,
		threadID: cfg.ThreadID,
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (t *Telegram) Notify(ctx context.Context, msg Message) error {
	chats, err := t.recipients(msg.Recipients)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(msg.Body)
	if s := strings.TrimSpace(msg.Subject); s != "" {
		text = s + "\n\n" + text
	}
	if text == "" {
		text = "(no output)"
	}

	var errs []error
	for _, chat := range chats {
		for _, chunk := range splitText(text, telegramTextLimit) {
			if err := t.limiter.Wait(ctx); err != nil {
				return err
			}
			opts := &tele.SendOptions{DisableWebPagePreview: true}
			if chat.ID == t.chatID {
				opts.ThreadID = t.threadID
			}
			if _, err := t.bot.Send(chat, chunk, opts); err != nil {
				errs = append(errs, fmt.Errorf("notify: telegram chat %d: %w", chat.ID, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

func (t *Telegram) recipients(in []string) ([]*tele.Chat, error) {
	if len(in) == 0 {
		if t.chatID == 0 {
			return nil, ErrNoRecipient
		}
		return []*tele.Chat{{ID: t.chatID}}, nil
	}
	out := make([]*tele.Chat, 0, len(in))
	for _, r := range in {
		id, err := strconv.ParseInt(strings.TrimSpace(r), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("notify: telegram recipient %q is not a chat id", r)
		}
		out = append(out, &tele.Chat{ID: id})
	}
	return out, nil
}

// splitText cuts s into pieces of at most limit bytes, preferring line breaks
// and never splitting a UTF-8 sequence.
func splitText(s string, limit int) []string {
	var out []string
	for len(s) > limit {
		cut := strings.LastIndexByte(s[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8Start(s[cut]) {
				cut--
			}
			// No rune boundary in the window: the bytes are not UTF-8 anyway.
			if cut == 0 {
				cut = limit
			}
		}
		out = append(out, s[:cut])
		s = strings.TrimLeft(s[cut:], "\n")
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
