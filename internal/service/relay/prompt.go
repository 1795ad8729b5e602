package relay

import (
	"os"
	"strings"
	"time"
)

const timePlaceholder = "{{ $json.current_time }}"

// defaultSystemPrompt is used when no prompt file is deployed next to the binary.
const defaultSystemPrompt = "Ты профессиональный AI ассистент для пользователей из Узбекистана"

// SystemPrompt renders the relay system prompt, substituting the current-time
// placeholder carried over from the deployed prompt template.
type SystemPrompt struct {
	template string
	now      func() time.Time
}

// LoadSystemPrompt reads the prompt template from path, falling back to the
// built-in default when the file is unreadable.
func LoadSystemPrompt(path string) *SystemPrompt {
	template := defaultSystemPrompt
	if raw, err := os.ReadFile(path); err == nil {
		template = string(raw)
	}
	return &SystemPrompt{template: template, now: time.Now}
}

// Render produces the prompt text for the current moment.
func (p *SystemPrompt) Render() string {
	return strings.ReplaceAll(p.template, timePlaceholder, p.now().Format("02.01.2006 15:04"))
}
