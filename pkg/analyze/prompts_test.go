package analyze

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemPrompt(t *testing.T) {
	for _, task := range classifierTasks {
		p := systemPrompt(task)
		assert.True(t, strings.HasPrefix(p, basePrompt), "task %s lost the base prompt", task)
	}
	assert.Contains(t, systemPrompt(taskCategory), "Svara endast med kategorinumret (1-5)")
	assert.Contains(t, systemPrompt(taskPriority), "Svara med: låg, medel, eller hög")
	assert.Contains(t, systemPrompt(taskTags), "separerade av komma")
	assert.Contains(t, systemPrompt(taskSentiment), "positiv, neutral, eller negativ")
	assert.Contains(t, systemPrompt(taskStatus), "ny, granskning, eller godkänd")
}

func TestUserPrompt(t *testing.T) {
	idea := Idea{
		Title:       "Digitala bygglov",
		Description: "Ansökan om bygglov helt digitalt",
		Type:        "förbättring",
		TargetGroup: "medborgare",
	}
	p := userPrompt(taskCategory, idea)
	assert.Contains(t, p, "Idé att analysera:")
	assert.Contains(t, p, "Titel: Digitala bygglov")
	assert.Contains(t, p, "Beskrivning: Ansökan om bygglov helt digitalt")
	assert.Contains(t, p, "Typ: förbättring")
	assert.Contains(t, p, "Målgrupp: medborgare")
	assert.True(t, strings.HasSuffix(p, "Vilken kategori passar bäst för denna idé?"))
}

func TestUserPromptDefaultsMissingContext(t *testing.T) {
	p := userPrompt(taskPriority, Idea{Description: "Något"})
	assert.Contains(t, p, "Titel: Ej angiven")
	assert.Contains(t, p, "Typ: Ej angiven")
	assert.Contains(t, p, "Målgrupp: Ej angiven")
	assert.True(t, strings.HasSuffix(p, "Vilken prioritet ska denna idé ha?"))
}
