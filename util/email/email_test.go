package email

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTime(t *testing.T) {
	testTime := time.Date(2025, 4, 5, 14, 30, 45, 0, time.UTC)

	testCases := []struct {
		name           string
		format         string
		expectedResult string
	}{
		{"RFC3339", time.RFC3339, "2025-04-05T14:30:45Z"},
		{"Simple Date", "2006-01-02", "2025-04-05"},
		{"Kitchen Time", time.Kitchen, "2:30PM"},
		{"Short Date Time", "Jan 2, 2006 15:04", "Apr 5, 2025 14:30"},
		{"Empty Format", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedResult, formatTime(tc.format, testTime))
		})
	}
}

func TestRenderAssigned(t *testing.T) {
	msg, err := Render(map[string]any{
		"Name":       "Jane",
		"ReportCode": "WR-ABC-12345",
		"Address":    "House 12, Road 5, Dhanmondi",
		"Priority":   "high",
		"ReportedAt": time.Date(2025, 4, 5, 14, 30, 0, 0, time.UTC),
	}, "reportAssigned.tmpl")
	require.NoError(t, err)

	assert.Equal(t, "New pickup assigned: WR-ABC-12345", msg.Subject)
	assert.Contains(t, msg.PlainBody, "Priority: HIGH")
	assert.Contains(t, msg.PlainBody, "Apr 5, 2025 14:30")
	assert.Contains(t, msg.HTMLBody, "<strong>WR-ABC-12345</strong>")
}

func TestRenderEscapesHTML(t *testing.T) {
	msg, err := Render(map[string]any{
		"Name":       "John",
		"ReportCode": "WR-1-ABCDE",
		"Address":    "<script>",
		"Notes":      "Cleared the pile",
	}, "reportResolved.tmpl")
	require.NoError(t, err)
	assert.NotContains(t, msg.HTMLBody, "<script>")
	assert.Contains(t, msg.HTMLBody, "&lt;script&gt;")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render(nil, "missing.tmpl")
	assert.Error(t, err)
}

func TestLogMailer(t *testing.T) {
	err := LogMailer{}.Send(context.Background(), "a@b.c", map[string]any{
		"Name": "A", "ReportCode": "WR-1-ABCDE", "Address": "Somewhere", "Notes": "done",
	}, "reportResolved.tmpl")
	assert.NoError(t, err)
}
