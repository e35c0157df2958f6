package cypherqa

import (
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

const defaultCypherTemplate = `Task: Generate a Cypher statement to query a graph database.
Instructions:
Use only the relationship types and properties provided in the schema.
Do not use any relationship types or properties that are not in the schema.
Schema:
{{.schema}}
Note: Do not include explanations or apologies in your response.
Do not answer any question that asks for anything other than a Cypher statement.
Respond with the Cypher statement only.

The question is:
{{.question}}`

const defaultQATemplate = `You are an assistant that turns database results into clear, human readable answers.
The information below is authoritative. Never doubt it or correct it with your own knowledge.
Phrase the answer as a direct response to the question and do not mention where the information came from.
If the information is empty, say that you don't know the answer.
Information:
{{.context}}

Question: {{.question}}
Helpful Answer:`

// DefaultCypherPrompt asks the model for a single Cypher statement.
func DefaultCypherPrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(defaultCypherTemplate, []string{"schema", "question"})
}

// DefaultQAPrompt asks the model to phrase query results as an answer.
func DefaultQAPrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(defaultQATemplate, []string{"context", "question"})
}

var fenced = regexp.MustCompile("(?s)```(.*?)```")

// ExtractCypher returns the statement inside the first triple-backtick
// block, or the whole text when there is none. A language tag is dropped
// only when it sits alone on the first line, so a CYPHER query option
// prefix survives.
func ExtractCypher(text string) string {
	if m := fenced.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)
	if first, rest, ok := strings.Cut(text, "\n"); ok && strings.EqualFold(strings.TrimSpace(first), "cypher") {
		text = strings.TrimSpace(rest)
	}
	return text
}
