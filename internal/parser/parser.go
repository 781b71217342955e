// Package parser extracts frontmatter, title, module, and section headings from playbook Markdown.
package parser

import (
	"bytes"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Result holds the output of parsing a playbook file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Title       string
	Module      string
	Headings    []string
}

// Parse extracts frontmatter, body, title, module, and headings from raw Markdown bytes.
// docPath is the repository-relative path and is used for title and module fallbacks.
func Parse(docPath string, data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body, docPath),
		Module:      deriveModule(fm, docPath),
		Headings:    extractHeadings(body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: keep the whole file as body.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise the file stem.
func deriveTitle(fm map[string]interface{}, body, docPath string) string {
	if s := stringField(fm, "title"); s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return Stem(docPath)
}

// deriveModule returns the frontmatter "module" if present, otherwise the first
// path segment. Documents at the repository root have no module.
func deriveModule(fm map[string]interface{}, docPath string) string {
	if s := stringField(fm, "module"); s != "" {
		return s
	}
	p := strings.TrimPrefix(path.Clean(strings.ReplaceAll(docPath, "\\", "/")), "/")
	if i := strings.Index(p, "/"); i > 0 {
		return p[:i]
	}
	return ""
}

// extractHeadings returns the text of every ATX heading (levels 1-6) in order,
// skipping fenced code blocks.
func extractHeadings(body string) []string {
	var out []string
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence || !strings.HasPrefix(trimmed, "#") {
			continue
		}
		level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
		if level > 6 || len(trimmed) == level || trimmed[level] != ' ' {
			continue
		}
		out = append(out, strings.TrimSpace(trimmed[level:]))
	}
	return out
}

// Stem returns the file name of p without directory and extension.
func Stem(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

func stringField(fm map[string]interface{}, key string) string {
	if fm == nil {
		return ""
	}
	if v, ok := fm[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
