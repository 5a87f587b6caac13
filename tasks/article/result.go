package article

import (
	"bytes"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"go.uber.org/multierr"
)

// SectionDraft is the drafted body of one planned section.
type SectionDraft struct {
	Index       int
	Heading     string
	Subheadings []string
	Content     string
}

// SkippedSection records a section dropped under the skip failure policy.
type SkippedSection struct {
	Index   int
	Heading string
	Err     error
}

// Result is the aggregated article. It is immutable once returned.
type Result struct {
	title   string
	drafts  []SectionDraft
	skipped []SkippedSection
}

// NewResult assembles a Result from drafts already in plan order. The slices
// are copied.
func NewResult(title string, drafts []SectionDraft, skipped []SkippedSection) Result {
	return Result{title: title, drafts: slices.Clone(drafts), skipped: slices.Clone(skipped)}
}

func (r Result) Title() string { return r.title }

// Sections returns the drafted section bodies in plan order.
func (r Result) Sections() []string {
	sections := make([]string, 0, len(r.drafts))
	for _, draft := range r.drafts {
		sections = append(sections, draft.Content)
	}
	return sections
}

func (r Result) Drafts() []SectionDraft {
	drafts := make([]SectionDraft, len(r.drafts))
	for index, draft := range r.drafts {
		draft.Subheadings = slices.Clone(draft.Subheadings)
		drafts[index] = draft
	}
	return drafts
}

func (r Result) Skipped() []SkippedSection { return slices.Clone(r.skipped) }

// SkippedErr combines the errors of every skipped section, or returns nil.
func (r Result) SkippedErr() error {
	var combined error
	for _, skipped := range r.skipped {
		combined = multierr.Append(combined, skipped.Err)
	}
	return combined
}

// Markdown renders the title as a level-1 heading followed by the sections.
func (r Result) Markdown() string {
	var builder strings.Builder
	builder.WriteString("# ")
	builder.WriteString(r.title)
	builder.WriteString("\n")
	for _, section := range r.Sections() {
		builder.WriteString("\n")
		builder.WriteString(strings.TrimSpace(section))
		builder.WriteString("\n")
	}
	return builder.String()
}

func (r Result) HTML() (string, error) {
	var buffer bytes.Buffer
	if err := goldmark.Convert([]byte(r.Markdown()), &buffer); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

// Document is the serialisable view of a Result.
type Document struct {
	Title    string            `yaml:"title" json:"title"`
	Sections []string          `yaml:"sections" json:"sections"`
	Skipped  []SkippedDocument `yaml:"skipped,omitempty" json:"skipped,omitempty"`
}

type SkippedDocument struct {
	Index   int    `yaml:"index" json:"index"`
	Heading string `yaml:"heading" json:"heading"`
	Error   string `yaml:"error" json:"error"`
}

func (r Result) Document() Document {
	document := Document{Title: r.title, Sections: r.Sections()}
	for _, skipped := range r.skipped {
		document.Skipped = append(document.Skipped, SkippedDocument{
			Index:   skipped.Index,
			Heading: skipped.Heading,
			Error:   skipped.Err.Error(),
		})
	}
	return document
}
