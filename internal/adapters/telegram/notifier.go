package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"signalTrader/internal/domain"
	"signalTrader/internal/ports"
)

const defaultBuffer = 64

// Sender is the subset of *tgbotapi.BotAPI used by the notifier.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Config holds configuration for the Telegram notifier.
type Config struct {
	BotToken string
	ChatID   int64
	Buffer   int
	Logger   ports.Logger
}

// Notifier implements ports.Notifier. Messages are queued and delivered by a single
// goroutine; a full queue drops the message.
type Notifier struct {
	sender Sender
	chatID int64
	logger ports.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan string
	done   chan struct{}
}

// New connects to the Bot API. Without a token or chat ID the notifier is disabled
// and every message is only logged.
func New(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Telegram notifier")
	}
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		cfg.Logger.Warn(context.Background(), "Telegram bot token or chat ID is not configured. Notifications will be disabled.")
		return newNotifier(nil, 0, cfg.Logger, cfg.Buffer), nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	cfg.Logger.Info(context.Background(), "Telegram notifier initialized", map[string]interface{}{
		"chatID": cfg.ChatID, "bot": bot.Self.UserName,
	})
	return newNotifier(bot, cfg.ChatID, cfg.Logger, cfg.Buffer), nil
}

// NewWithSender builds a notifier around an existing sender.
func NewWithSender(sender Sender, chatID int64, logger ports.Logger, buffer int) *Notifier {
	return newNotifier(sender, chatID, logger, buffer)
}

func newNotifier(sender Sender, chatID int64, logger ports.Logger, buffer int) *Notifier {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	n := &Notifier{
		sender: sender,
		chatID: chatID,
		logger: logger,
		queue:  make(chan string, buffer),
		done:   make(chan struct{}),
	}
	go n.loop()
	return n
}

// Enabled reports whether messages are delivered to Telegram.
func (n *Notifier) Enabled() bool {
	return n.sender != nil
}

func (n *Notifier) loop() {
	defer close(n.done)
	for text := range n.queue {
		n.deliver(text)
	}
}

func (n *Notifier) deliver(text string) {
	ctx := context.Background()
	if n.sender == nil {
		n.logger.Info(ctx, "Telegram disabled. Message not sent", map[string]interface{}{"text": text})
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error(ctx, err, "Error sending Telegram message")
		return
	}
	n.logger.Debug(ctx, "Telegram message sent")
}

// send enqueues text without blocking.
func (n *Notifier) send(ctx context.Context, text string) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logger.Warn(ctx, "Telegram notifier closed, dropping message", map[string]interface{}{"text": text})
		return
	}
	select {
	case n.queue <- text:
	default:
		n.logger.Warn(ctx, "Telegram queue full, dropping message", map[string]interface{}{"text": text})
	}
}

// Close stops accepting messages and waits until queued ones are delivered or ctx ends.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyInfo sends a plain status message.
func (n *Notifier) NotifyInfo(ctx context.Context, text string) {
	n.send(ctx, text)
}

// NotifyError sends an error report.
func (n *Notifier) NotifyError(ctx context.Context, title, detail string) {
	n.send(ctx, FormatError(title, detail))
}

// NotifyEntry announces a newly protected position.
func (n *Notifier) NotifyEntry(ctx context.Context, e ports.EntryNotice) {
	n.send(ctx, FormatEntry(e))
}

// NotifyClose announces a position leaving management.
func (n *Notifier) NotifyClose(ctx context.Context, c ports.CloseNotice) {
	n.send(ctx, FormatClose(c))
}

// NotifyBalance reports the account balance and open trade count.
func (n *Notifier) NotifyBalance(ctx context.Context, balance decimal.Decimal, openTrades int, realized *decimal.Decimal) {
	n.send(ctx, FormatBalance(balance, openTrades, realized))
}

func directionEmoji(d domain.Direction) string {
	if d == domain.Long {
		return "🟢"
	}
	return "🔴"
}

// FormatEntry renders the entry message.
func FormatEntry(e ports.EntryNotice) string {
	emoji := directionEmoji(e.Direction)
	var b strings.Builder
	fmt.Fprintf(&b, "%s **New Trade Entry** %s\n\n", emoji, emoji)
	fmt.Fprintf(&b, "**Symbol:** `%s`\n", e.Symbol)
	fmt.Fprintf(&b, "**Direction:** `%s`\n", e.Direction.Upper())
	fmt.Fprintf(&b, "**Entry Price:** `%s`\n", e.EntryPrice.StringFixed(4))
	fmt.Fprintf(&b, "**Quantity:** `%s`\n", e.Quantity.String())
	fmt.Fprintf(&b, "**Stop Loss:** `%s`\n", e.StopPrice.StringFixed(4))
	return b.String()
}

// FormatClose renders the close message.
func FormatClose(c ports.CloseNotice) string {
	emoji := "✅"
	if c.PNL.IsNegative() {
		emoji = "❌"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s **Trade Closed** %s\n\n", emoji, emoji)
	fmt.Fprintf(&b, "**Symbol:** `%s`\n", c.Symbol)
	fmt.Fprintf(&b, "**Direction:** `%s`\n", c.Direction.Upper())
	fmt.Fprintf(&b, "**Entry Price:** `%s`\n", c.EntryPrice.StringFixed(4))
	fmt.Fprintf(&b, "**Exit Price:** `%s`\n", c.ExitPrice.StringFixed(4))
	fmt.Fprintf(&b, "**Quantity:** `%s`\n", c.Quantity.String())
	fmt.Fprintf(&b, "**P&L (USDT):** `%s`\n", c.PNL.StringFixed(2))

	var notes []string
	if c.Reason != "" {
		notes = append(notes, "Reason: `"+string(c.Reason)+"`")
	}
	if c.Estimated {
		notes = append(notes, "exit price estimated")
	}
	if len(notes) > 0 {
		fmt.Fprintf(&b, "\n**Notes:** %s", strings.Join(notes, ", "))
	}
	return b.String()
}

// FormatError renders an error report.
func FormatError(title, detail string) string {
	var b strings.Builder
	b.WriteString("⚠️ **Bot Error** ⚠️\n\n")
	fmt.Fprintf(&b, "**Message:** `%s`\n", title)
	if detail != "" {
		fmt.Fprintf(&b, "**Details:** `%s`", detail)
	}
	return b.String()
}

// FormatBalance renders the status message. realized is optional.
func FormatBalance(balance decimal.Decimal, openTrades int, realized *decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("💰 **Bot Status & Balance** 💰\n\n")
	fmt.Fprintf(&b, "**Current USDT Balance:** `%s`\n", balance.StringFixed(2))
	fmt.Fprintf(&b, "**Open Positions:** `%d`\n", openTrades)
	if realized != nil {
		fmt.Fprintf(&b, "**Realized P&L:** `%s` USDT\n", realized.StringFixed(2))
	}
	return b.String()
}
