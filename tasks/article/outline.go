package article

import (
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/article-drafter/internal/schema"
)

// Outline is the validated output of the outline step.
type Outline struct {
	Title              string
	Sections           []string
	SectionSubheadings schema.StringListMap
}

// OutlineFromValues reads an Outline out of the outline step's outputs.
func OutlineFromValues(values schema.Values) (Outline, error) {
	title, err := values.String(TitleField)
	if err != nil {
		return Outline{}, err
	}
	sections, err := values.StringList(SectionsField)
	if err != nil {
		return Outline{}, err
	}
	subheadings, err := values.StringListMap(SectionSubheadingsField)
	if err != nil {
		return Outline{}, err
	}
	return Outline{Title: title, Sections: sections, SectionSubheadings: subheadings}, nil
}

// verifyOutline enforces that the outline is usable: a title is present and
// every heading in the subheading mapping is one of the declared sections.
func verifyOutline(outputs schema.Values) error {
	outline, err := OutlineFromValues(outputs)
	if err != nil {
		return err
	}
	if strings.TrimSpace(outline.Title) == "" {
		return errors.New("title is empty")
	}

	declared := make(map[string]struct{}, len(outline.Sections))
	for _, heading := range outline.Sections {
		declared[heading] = struct{}{}
	}
	var unknown []string
	for _, heading := range outline.SectionSubheadings.Keys() {
		if _, ok := declared[heading]; !ok {
			unknown = append(unknown, fmt.Sprintf("%q", heading))
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%s keys are not listed in %s: %s", SectionSubheadingsField, SectionsField, strings.Join(unknown, ", "))
	}
	return nil
}
