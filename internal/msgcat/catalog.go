package msgcat

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultMessages []byte

// Catalog holds the user-facing texts of a game (status lines, results,
// engine failures) as templates keyed by dotted path, e.g. "error.engine_timeout".
// It is read-only after New.
type Catalog struct {
	texts map[string]*template.Template
}

// New parses the embedded English texts and then every *.yaml / *.yml file
// in overrideDir, in name order. Override files may only replace keys that
// exist in the defaults; a later file wins over an earlier one.
func New(overrideDir string) (*Catalog, error) {
	texts, err := flatten(defaultMessages)
	if err != nil {
		return nil, fmt.Errorf("embedded messages: %w", err)
	}
	if dir := strings.TrimSpace(overrideDir); dir != "" {
		if err := applyOverrides(dir, texts); err != nil {
			return nil, err
		}
	}

	c := &Catalog{texts: make(map[string]*template.Template, len(texts))}
	for key, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("message %s is empty", key)
		}
		tpl, err := template.New(key).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", key, err)
		}
		c.texts[key] = tpl
	}
	return c, nil
}

func applyOverrides(dir string, texts map[string]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read messages dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		override, err := flatten(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for key, text := range override {
			if _, ok := texts[key]; !ok {
				return fmt.Errorf("%s: unknown message %q", name, key)
			}
			texts[key] = text
		}
	}
	return nil
}

// flatten turns nested YAML mappings into dotted keys. Leaves must be text.
func flatten(raw []byte) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if len(doc.Content) == 0 {
		return out, nil
	}
	return out, walk(doc.Content[0], "", out)
}

func walk(n *yaml.Node, prefix string, out map[string]string) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := walk(n.Content[i+1], key, out); err != nil {
				return err
			}
		}
		return nil
	case yaml.ScalarNode:
		if prefix == "" {
			return fmt.Errorf("line %d: text without a key", n.Line)
		}
		out[prefix] = n.Value
		return nil
	default:
		return fmt.Errorf("line %d: %s must be text or a mapping", n.Line, prefix)
	}
}

// Render executes the message for key. Unknown keys and missing data fields fail.
func (c *Catalog) Render(key string, data any) (string, error) {
	tpl, ok := c.texts[key]
	if !ok {
		return "", fmt.Errorf("message not found: %s", key)
	}
	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Text is Render that falls back to the key itself. A nil catalog always falls back.
func (c *Catalog) Text(key string, data any) string {
	if c == nil {
		return key
	}
	out, err := c.Render(key, data)
	if err != nil {
		return key
	}
	return out
}

func (c *Catalog) Has(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.texts[key]
	return ok
}
