package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/emadn88/elmcorner/pkg/money"
)

var tokenRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// MessageVars are the values a WhatsApp message template may reference.
type MessageVars struct {
	StudentName  string
	Round        int
	TotalHours   float64
	Amount       float64
	UnpaidAmount float64
	Currency     string
	PaymentLink  string
}

// FormatMessage renders template by replacing {token} placeholders.
// Unknown tokens fail rendering instead of leaking into the message.
func FormatMessage(template string, vars MessageVars) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("message template is empty")
	}

	values := map[string]string{
		"student_name":  strings.TrimSpace(vars.StudentName),
		"round":         strconv.Itoa(vars.Round),
		"total_hours":   money.FormatHours(vars.TotalHours),
		"amount":        money.FormatAmount(vars.Amount),
		"unpaid_amount": money.FormatAmount(vars.UnpaidAmount),
		"currency":      strings.ToUpper(strings.TrimSpace(vars.Currency)),
		"payment_link":  strings.TrimSpace(vars.PaymentLink),
	}

	for _, match := range tokenRe.FindAllStringSubmatch(template, -1) {
		if _, ok := values[match[1]]; !ok {
			return "", fmt.Errorf("unresolved token in message template: %s", match[0])
		}
	}

	out := tokenRe.ReplaceAllStringFunc(template, func(m string) string {
		return values[m[1:len(m)-1]]
	})
	return strings.TrimSpace(out), nil
}
