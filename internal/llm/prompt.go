package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/temirov/article-drafter/internal/pipeline"
	"github.com/temirov/article-drafter/internal/schema"
)

var systemPromptTmpl = template.Must(template.New("system").Parse(`{{.Purpose}}

Your input fields are:
{{range .Inputs}}- {{.Name}} ({{.Type}}){{if .Description}}: {{.Description}}{{end}}
{{end}}
Your output fields are:
{{range .Outputs}}- {{.Name}} ({{.Type}}){{if .Description}}: {{.Description}}{{end}}
{{end}}
{{- if .Reasoning}}
Think step by step in the {{.ReasoningField}} field before filling in the other outputs.
{{- end}}
Respond with a single JSON object whose keys are exactly the output fields. Do not include any text outside the JSON object.
`))

var userPromptTmpl = template.Must(template.New("user").Parse(`{{range .}}[[ ## {{.Name}} ## ]]
{{.Value}}

{{end}}`))

type promptField struct {
	Name        string
	Type        string
	Description string
}

type systemPromptData struct {
	Purpose        string
	Inputs         []promptField
	Outputs        []promptField
	Reasoning      bool
	ReasoningField string
}

type inputBlock struct {
	Name  string
	Value string
}

func promptFields(fields []schema.Field) []promptField {
	rendered := make([]promptField, 0, len(fields))
	for _, field := range fields {
		rendered = append(rendered, promptField{Name: field.Name, Type: field.Type.String(), Description: field.Description})
	}
	return rendered
}

func renderSystemPrompt(request pipeline.Request) (string, error) {
	_, reasoning := request.Schema.Field(pipeline.ReasoningFieldName)
	data := systemPromptData{
		Purpose:        request.Schema.Purpose(),
		Inputs:         promptFields(request.Schema.Inputs()),
		Outputs:        promptFields(request.Schema.Outputs()),
		Reasoning:      reasoning,
		ReasoningField: pipeline.ReasoningFieldName,
	}
	var buffer bytes.Buffer
	if err := systemPromptTmpl.Execute(&buffer, data); err != nil {
		return "", fmt.Errorf("rendering system prompt: %w", err)
	}
	return buffer.String(), nil
}

// renderUserPrompt lists every declared input as a delimited block. Lists are
// rendered as JSON arrays so their boundaries stay unambiguous.
func renderUserPrompt(request pipeline.Request) (string, error) {
	var blocks []inputBlock
	for _, field := range request.Schema.Inputs() {
		value, _ := request.Inputs.Get(field.Name)
		rendered, err := renderValue(value)
		if err != nil {
			return "", fmt.Errorf("rendering input %s: %w", field.Name, err)
		}
		blocks = append(blocks, inputBlock{Name: field.Name, Value: rendered})
	}
	var buffer bytes.Buffer
	if err := userPromptTmpl.Execute(&buffer, blocks); err != nil {
		return "", fmt.Errorf("rendering user prompt: %w", err)
	}
	return appendRefine(buffer.String(), request.Refinement), nil
}

func renderValue(value any) (string, error) {
	if text, ok := value.(string); ok {
		return text, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func appendRefine(original, refine string) string {
	if strings.TrimSpace(refine) == "" {
		return original
	}
	trimmedOriginal := strings.TrimRight(original, "\n")
	if trimmedOriginal == "" {
		return refine
	}
	return trimmedOriginal + "\n\n" + refine
}
