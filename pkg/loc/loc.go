// Package loc resolves localization keys to display strings.
//
// Messages are YAML maps of key to text. Text may reference named arguments
// with Fluent-style placeables, e.g. "{ $user } did it". Lookups of unknown
// keys return the key itself so a missing translation is visible but harmless.
package loc

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

//go:embed en-US.yml
var defaultMessages []byte

var placeable = regexp.MustCompile(`\{\s*\$([A-Za-z0-9_-]+)\s*\}`)

// entry is one compiled message: the printf format registered in the catalog
// and the argument names in positional order.
type entry struct {
	args []string
}

// Catalog holds the messages for one language.
type Catalog struct {
	mu      sync.RWMutex
	tag     language.Tag
	builder *catalog.Builder
	printer *message.Printer
	entries map[string]entry
}

// New creates a catalog for tag preloaded with the built-in en-US messages.
func New(tag language.Tag) *Catalog {
	c := &Catalog{
		tag:     tag,
		builder: catalog.NewBuilder(catalog.Fallback(language.AmericanEnglish)),
		entries: make(map[string]entry),
	}
	if err := c.load(defaultMessages); err != nil {
		panic(fmt.Sprintf("loc: built-in messages: %v", err))
	}
	return c
}

// LoadFile merges the messages in a YAML file into the catalog.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loc: read %s: %w", path, err)
	}
	if err := c.load(data); err != nil {
		return fmt.Errorf("loc: %s: %w", path, err)
	}
	return nil
}

func (c *Catalog) load(data []byte) error {
	var msgs map[string]string
	if err := yaml.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, text := range msgs {
		format, args := compile(text)
		if err := c.builder.SetString(c.tag, key, format); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		c.entries[key] = entry{args: args}
	}
	c.printer = message.NewPrinter(c.tag, message.Catalog(c.builder))
	return nil
}

// compile turns Fluent placeables into indexed printf verbs. Literal percent
// signs are escaped first so they print as themselves.
func compile(text string) (string, []string) {
	var args []string
	index := make(map[string]int)
	text = strings.ReplaceAll(text, "%", "%%")
	format := placeable.ReplaceAllStringFunc(text, func(m string) string {
		name := placeable.FindStringSubmatch(m)[1]
		i, ok := index[name]
		if !ok {
			args = append(args, name)
			i = len(args)
			index[name] = i
		}
		return fmt.Sprintf("%%[%d]v", i)
	})
	return format, args
}

// GetString resolves key. args are alternating name/value pairs matching the
// placeables in the message; missing arguments render as empty strings.
func (c *Catalog) GetString(key string, args ...any) string {
	c.mu.RLock()
	e, ok := c.entries[key]
	p := c.printer
	c.mu.RUnlock()
	if !ok {
		return key
	}

	named := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if name, ok := args[i].(string); ok {
			named[name] = args[i+1]
		}
	}
	positional := make([]any, len(e.args))
	for i, name := range e.args {
		if v, ok := named[name]; ok {
			positional[i] = v
		} else {
			positional[i] = ""
		}
	}
	return p.Sprintf(key, positional...)
}

// Has reports whether key is defined.
func (c *Catalog) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}
