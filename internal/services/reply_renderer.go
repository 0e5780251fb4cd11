package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
)

const (
	AckMessage       = "🔄 Analyzing your crop image... please wait a few seconds."
	NoMediaHint      = "🌱 Please send a *crop leaf image* along with your city name (e.g., 'Bamenda')."
	WebhookAck       = "✅ Thanks! Your request is being processed. You’ll get results shortly."
	noAdviceFallback = "No advice available."

	replyTemplate = "🌾 *Smart Agro Advisor*\n\n" +
		"📍 City: {{city}}\n" +
		"🌱 Crop: {{crop}}\n" +
		"🦠 Disease: {{disease}}\n\n" +
		"💡 *Advice:*\n{{advice}}"

	summaryTemplate = "🌾 Smart Agro Advisor\n\n" +
		"📍 {{city}}\n" +
		"🌱 {{crop}}\n" +
		"🦠 {{disease}}\n\n" +
		"💡 Advice: (reply with 'more' to get details)"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate replaces {{key}} placeholders. Unknown keys are left as is.
func RenderTemplate(template string, variables map[string]interface{}) string {
	if template == "" || len(variables) == 0 {
		return template
	}

	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		submatch := placeholderRegex.FindStringSubmatch(match)
		if len(submatch) != 2 {
			return match
		}
		if value, ok := variables[submatch[1]]; ok {
			return fmt.Sprint(value)
		}
		return match
	})
}

// RenderReply formats the full advisory reply.
func RenderReply(a *models.Advisory) string {
	advice := strings.TrimSpace(strings.Join(a.Advice, "\n"))
	if advice == "" {
		advice = noAdviceFallback
	}
	return RenderTemplate(replyTemplate, replyVariables(a, advice))
}

// RenderSummary formats the short message sent when the full reply could not be delivered.
func RenderSummary(a *models.Advisory) string {
	return RenderTemplate(summaryTemplate, replyVariables(a, ""))
}

func replyVariables(a *models.Advisory, advice string) map[string]interface{} {
	city := a.City
	if city == "" {
		city = models.UnknownWeather
	}
	crop := a.Crop
	if crop == "" {
		crop = models.UnknownCrop
	}
	disease := a.Diagnosis.Label
	if disease == "" {
		disease = "Unknown disease"
	}
	return map[string]interface{}{
		"city":    city,
		"crop":    crop,
		"disease": disease,
		"advice":  advice,
	}
}
