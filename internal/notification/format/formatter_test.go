package format

import (
	"testing"

	"github.com/emadn88/elmcorner/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMessageDefaultTemplates(t *testing.T) {
	vars := MessageVars{
		StudentName:  "Omar",
		Round:        2,
		TotalHours:   8,
		Amount:       80,
		UnpaidAmount: 80,
		Currency:     "usd",
		PaymentLink:  "https://pay.example/x",
	}

	got, err := FormatMessage(config.DefaultSendTemplate, vars)
	require.NoError(t, err)
	assert.Equal(t, "Hello Omar, your package round 2 (8 hours) is complete. Amount due: 80.00 USD. https://pay.example/x", got)

	vars.PaymentLink = ""
	got, err = FormatMessage(config.DefaultReminderTemplate, vars)
	require.NoError(t, err)
	assert.Equal(t, "Reminder for Omar: package round 2 still has 80.00 USD unpaid.", got)
}

func TestFormatMessageRejectsUnknownToken(t *testing.T) {
	_, err := FormatMessage("Hi {student_name}, {discount}", MessageVars{StudentName: "A"})
	assert.Error(t, err)

	_, err = FormatMessage("   ", MessageVars{})
	assert.Error(t, err)
}

func TestFormatMessageKeepsBracesInValues(t *testing.T) {
	got, err := FormatMessage("Hi {student_name}", MessageVars{StudentName: "{x}"})
	require.NoError(t, err)
	assert.Equal(t, "Hi {x}", got)
}
