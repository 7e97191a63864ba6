package analyze

import "fmt"

// task names one classifier. Each task is a single chat completion
// with its own system prompt and closing instruction.
type task string

const (
	taskCategory  task = "categorization"
	taskPriority  task = "priority"
	taskTags      task = "tags"
	taskSentiment task = "sentiment"
	taskStatus    task = "status"
)

// classifierTasks is the fixed fan-out order. Index positions match
// the outcome slice in Analyze.
var classifierTasks = []task{taskCategory, taskPriority, taskTags, taskSentiment, taskStatus}

const basePrompt = `Du är en AI-assistent som analyserar idéer och förslag för svenska offentliga organisationer.
Du är expert på innovation inom offentlig sektor och förstår svenska förhållanden väl.

Dina svar ska vara:
- Objektiva och professionella
- Baserade på svensk offentlig sektor kontext
- Strukturerade och tydliga
- På svenska`

var taskPrompts = map[task]string{
	taskCategory: `

Din uppgift är att kategorisera idéer baserat på dessa befintliga kategorier:
1. Digital transformation - Digitalisering av tjänster och processer
2. Medborgarservice - Förbättring av service till medborgare
3. Miljö och klimat - Hållbarhet och miljöinitiativ
4. Processer och effektivitet - Förbättring av interna processer
5. Innovation och utveckling - Nya idéer och lösningar

Svara endast med kategorinumret (1-5) och kategorins namn.`,

	taskPriority: `

Din uppgift är att bedöma prioritet baserat på:
- Påverkan på medborgare/verksamhet
- Genomförbarhet och kostnad
- Strategisk relevans för offentlig sektor
- Tidsaspekt (brådskande behov)

Svara med: låg, medel, eller hög`,

	taskTags: `

Din uppgift är att föreslå 3-5 relevanta taggar som beskriver idén.
Taggar ska vara:
- Korta (1-2 ord)
- Relevanta för svensk offentlig sektor
- Sökbara nyckelord
- På svenska (småbokstäver)

Svara endast med taggarna separerade av komma.`,

	taskSentiment: `

Din uppgift är att bedöma sentiment och ton i idén:
- positiv: Konstruktiv, lösningsfokuserad
- neutral: Faktabaserad, balanserad
- negativ: Kritisk, problemfokuserad

Svara endast med: positiv, neutral, eller negativ`,

	taskStatus: `

Din uppgift är att föreslå lämplig initial status baserat på idéns mognad:
- ny: Tidig idé, behöver mer utveckling
- granskning: Välutvecklad idé redo för bedömning
- godkänd: Klar idé med tydlig genomförande plan

Svara endast med: ny, granskning, eller godkänd`,
}

var taskInstructions = map[task]string{
	taskCategory:  "Vilken kategori passar bäst för denna idé?",
	taskPriority:  "Vilken prioritet ska denna idé ha?",
	taskTags:      "Vilka taggar beskriver bäst denna idé?",
	taskSentiment: "Vilken sentiment har denna idé?",
	taskStatus:    "Vilken status bör denna idé ha initialt?",
}

func systemPrompt(t task) string {
	return basePrompt + taskPrompts[t]
}

func userPrompt(t task, idea Idea) string {
	instruction, ok := taskInstructions[t]
	if !ok {
		instruction = "Analysera denna idé:"
	}
	return fmt.Sprintf(`Idé att analysera:

Titel: %s

Beskrivning: %s

Typ: %s
Målgrupp: %s

%s`,
		orUnspecified(idea.Title),
		idea.Description,
		orUnspecified(idea.Type),
		orUnspecified(idea.TargetGroup),
		instruction)
}

func orUnspecified(s string) string {
	if s == "" {
		return "Ej angiven"
	}
	return s
}
