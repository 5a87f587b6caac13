package article

import (
	"fmt"
	"slices"
	"strings"

	"github.com/temirov/article-drafter/internal/schema"
)

const (
	headingPrefix    = "## "
	subheadingPrefix = "### "
)

// SectionOrder selects which outline structure decides the drafting order.
type SectionOrder string

const (
	// OrderMapping follows the order in which section_subheadings was emitted.
	OrderMapping SectionOrder = "mapping"
	// OrderSections follows the sections list; headings without subheadings
	// are drafted with none.
	OrderSections SectionOrder = "sections"
)

// ParseSectionOrder accepts "mapping" or "sections"; empty means mapping.
func ParseSectionOrder(value string) (SectionOrder, error) {
	switch SectionOrder(strings.ToLower(strings.TrimSpace(value))) {
	case "", OrderMapping:
		return OrderMapping, nil
	case OrderSections:
		return OrderSections, nil
	default:
		return "", fmt.Errorf("unknown section order %q (want %s or %s)", value, OrderMapping, OrderSections)
	}
}

// SectionCall is one planned draft-section invocation.
type SectionCall struct {
	Index       int
	Heading     string
	Subheadings []string
}

// FormattedHeading renders the heading as a level-2 label.
func (c SectionCall) FormattedHeading() string { return FormatHeading(c.Heading) }

// FormattedSubheadings renders each subheading as a level-3 label.
func (c SectionCall) FormattedSubheadings() []string {
	formatted := make([]string, 0, len(c.Subheadings))
	for _, subheading := range c.Subheadings {
		formatted = append(formatted, FormatSubheading(subheading))
	}
	return formatted
}

func (c SectionCall) inputs(title string) schema.Values {
	return schema.NewValues(map[string]any{
		TopicField:              title,
		SectionHeadingField:     c.FormattedHeading(),
		SectionSubheadingsField: c.FormattedSubheadings(),
	})
}

func FormatHeading(heading string) string       { return headingPrefix + heading }
func FormatSubheading(subheading string) string { return subheadingPrefix + subheading }

// PlanSections turns a validated outline into the ordered list of section
// calls. The plan is computed from the outline alone, before any call is made.
func PlanSections(outline Outline, order SectionOrder) []SectionCall {
	var plan []SectionCall
	switch order {
	case OrderSections:
		for _, heading := range outline.Sections {
			subheadings, _ := outline.SectionSubheadings.Lookup(heading)
			plan = append(plan, SectionCall{Index: len(plan), Heading: heading, Subheadings: subheadings})
		}
	default:
		for _, entry := range outline.SectionSubheadings {
			plan = append(plan, SectionCall{Index: len(plan), Heading: entry.Key, Subheadings: slices.Clone(entry.Values)})
		}
	}
	return plan
}
