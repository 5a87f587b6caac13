// Package article drafts a structured article: one outline call followed by
// one draft call per outlined section, aggregated in outline order.
package article

import "github.com/temirov/article-drafter/internal/schema"

const (
	TopicField              = "topic"
	TitleField              = "title"
	SectionsField           = "sections"
	SectionSubheadingsField = "section_subheadings"
	SectionHeadingField     = "section_heading"
	ContentField            = "content"
)

// OutlineSchema produces the title, the ordered section headings and the
// subheadings of each section.
var OutlineSchema = schema.MustDefine(
	"Outline",
	"Outline a thorough overview of a topic.",
	schema.InputField(TopicField, schema.String, ""),
	schema.OutputField(TitleField, schema.String, ""),
	schema.OutputField(SectionsField, schema.StringList, ""),
	schema.OutputField(SectionSubheadingsField, schema.StringListMapType, "mapping from section headings to subheadings"),
)

// DraftSectionSchema produces the markdown body of one top-level section.
var DraftSectionSchema = schema.MustDefine(
	"DraftSection",
	"Draft a top-level section of an article.",
	schema.InputField(TopicField, schema.String, ""),
	schema.InputField(SectionHeadingField, schema.String, ""),
	schema.InputField(SectionSubheadingsField, schema.StringList, ""),
	schema.OutputField(ContentField, schema.String, "markdown-formatted section"),
)
