package persist

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterFence = "---"

// Frontmatter is the header carried by transcript and enhanced-note files.
type Frontmatter struct {
	ID         string `yaml:"id"`
	SessionID  string `yaml:"session_id"`
	TemplateID string `yaml:"template_id,omitempty"`
	Position   *int   `yaml:"position,omitempty"`
	Title      string `yaml:"title,omitempty"`
}

// encodeFrontmatterDoc renders a frontmatter header followed by the body.
func encodeFrontmatterDoc(fm Frontmatter, body string) (string, error) {
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}
	var b strings.Builder
	b.WriteString(frontmatterFence)
	b.WriteString("\n")
	b.Write(header)
	b.WriteString(frontmatterFence)
	b.WriteString("\n")
	b.WriteString(body)
	return b.String(), nil
}

// decodeFrontmatterDoc splits a document into its frontmatter header and
// body. Documents without a leading fence are rejected.
func decodeFrontmatterDoc(doc string) (Frontmatter, string, error) {
	var fm Frontmatter

	rest, ok := strings.CutPrefix(doc, frontmatterFence+"\n")
	if !ok {
		return fm, "", fmt.Errorf("decode frontmatter: missing opening fence")
	}
	header, body, ok := strings.Cut(rest, "\n"+frontmatterFence+"\n")
	if !ok {
		// The closing fence may terminate the document.
		header, ok = strings.CutSuffix(rest, "\n"+frontmatterFence)
		if !ok {
			return fm, "", fmt.Errorf("decode frontmatter: missing closing fence")
		}
		body = ""
	}
	if err := yaml.Unmarshal([]byte(header+"\n"), &fm); err != nil {
		return fm, "", fmt.Errorf("decode frontmatter: %w", err)
	}
	return fm, body, nil
}
