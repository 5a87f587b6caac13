package articledrafter

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/article-drafter/tasks/article"
)

func normalizeFormat(format string) (string, error) {
	switch normalized := strings.ToLower(strings.TrimSpace(format)); normalized {
	case "", "md", formatMarkdown:
		return formatMarkdown, nil
	case formatHTML, formatYAML, formatJSON:
		return normalized, nil
	case "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf(unknownFormatErrorFormat, format)
	}
}

// renderResult serialises a drafted article in the requested format.
func renderResult(result article.Result, format string) ([]byte, error) {
	switch format {
	case formatHTML:
		html, err := result.HTML()
		if err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		return []byte(html), nil
	case formatYAML:
		return yaml.Marshal(result.Document())
	case formatJSON:
		encoded, err := json.MarshalIndent(result.Document(), "", "  ")
		if err != nil {
			return nil, err
		}
		return append(encoded, '\n'), nil
	default:
		return []byte(result.Markdown()), nil
	}
}
