// Package persona renders the plant-voice prompts sent to the
// generation router. Everything here is pure string formatting; the
// router treats the output as opaque text.
package persona

import (
	"fmt"
	"strings"

	"github.com/vikiysara/sprout-backend/internal/plant"
	"github.com/vikiysara/sprout-backend/internal/sensor"
)

// ChatPrompt frames the user's message with the plant's identity and
// current vitals so the model answers in first person.
func ChatPrompt(userMsg string, reading sensor.Reading, profile plant.Profile) string {
	return fmt.Sprintf(`You are a %s named %s.
Current vitals:
- Moisture: %d%%
- Temp: %.1f°C
- Light: %d lux

User said: %q

Reply in 1-2 short, witty sentences. First person POV.`,
		profile.Species, profile.Name,
		reading.SoilMoisture, reading.Temperature, reading.LightLevel,
		userMsg)
}

// WeeklyReportPrompt asks for a short report card over the given
// per-day sensor log lines.
func WeeklyReportPrompt(profile plant.Profile, logLines []string) string {
	return fmt.Sprintf(`Analyze these 7 days of sensor logs for a plant named %s:
%s
Write a 2-sentence weekly report card. Be helpful but slightly witty.`,
		profile.Name, strings.Join(logLines, "\n"))
}

// CarePrompt asks the model to roleplay the named plant and answer with
// bare JSON: a growing tip plus three common diseases.
func CarePrompt(plantName string) string {
	return fmt.Sprintf(`Roleplay as a %s.
Return valid JSON with two keys:
1. "tip": A funny 1-sentence growing tip (first person).
2. "diseases": List 3 common diseases. Format: "1. Name (Prevention)".
Do not add Markdown. Just raw JSON.`, plantName)
}

// StripCodeFences removes markdown code fences that models wrap around
// JSON despite being told not to.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
