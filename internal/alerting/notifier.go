package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"balance-sentinel/internal/chains"
)

// Notification carries one batch of low-balance findings.
type Notification struct {
	Readings     []chains.BalanceReading
	ThresholdUSD decimal.Decimal
	CheckedAt    time.Time
}

// Notifier delivers a formatted alert message.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends one composite message for the whole batch via sendMessage.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Int("wallets", len(note.Readings)).
		Time("checked_at", note.CheckedAt).
		Msg("alert sent (Telegram)")
	return nil
}

// RenderMessage builds the composite alert text for a batch of findings.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Low Balance Alert]\n")
	for _, reading := range note.Readings {
		builder.WriteString(fmt.Sprintf("%s: %s %s (%s) %s\n",
			reading.Name,
			FormatBalance(reading.Balance),
			reading.Symbol,
			FormatUSD(reading.ValueUSD),
			TruncateAddress(reading.Address),
		))
	}
	builder.WriteString(fmt.Sprintf("Threshold: $%s\n", note.ThresholdUSD.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Checked: %s\n", note.CheckedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	return builder.String()
}

var sciNotationCutoff = decimal.New(1, -6)

// FormatBalance renders a balance with six fixed decimals, switching to
// scientific notation for tiny non-zero amounts. A nil balance renders as
// the literal Error.
func FormatBalance(balance *decimal.Decimal) string {
	if balance == nil {
		return "Error"
	}
	if !balance.IsZero() && balance.Abs().LessThan(sciNotationCutoff) {
		return fmt.Sprintf("%.2e", balance.InexactFloat64())
	}
	return balance.StringFixed(6)
}

// FormatUSD renders a USD value with two decimals and a dollar prefix.
func FormatUSD(value *decimal.Decimal) string {
	if value == nil {
		return "-"
	}
	return "$" + value.StringFixed(2)
}

// TruncateAddress shortens long wallet addresses to first 6 + last 4
// characters. Addresses of 20 characters or fewer pass through unchanged.
func TruncateAddress(address string) string {
	if len(address) <= 20 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

var _ Notifier = (*TelegramNotifier)(nil)
