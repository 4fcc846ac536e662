// Package vocabulary loads the skill vocabulary and the state abbreviation
// table from a YAML file. Both are plain data and may change between runs.
package vocabulary

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned when no usable skill vocabulary is available.
var ErrEmpty = errors.New("no skill vocabulary available")

// Vocabulary is the read-only input of the skill extractor and state inference.
type Vocabulary struct {
	Skills []string
	// States overrides entries of the built-in abbreviation table.
	States map[string]string
}

type document struct {
	Skills []string          `yaml:"skills"`
	States map[string]string `yaml:"states"`
}

// Parse decodes a vocabulary document. Skills are lower-cased, trimmed and
// de-duplicated in file order.
func Parse(data []byte) (Vocabulary, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Vocabulary{}, fmt.Errorf("decode vocabulary: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Skills))
	skills := make([]string, 0, len(doc.Skills))
	for _, s := range doc.Skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		skills = append(skills, s)
	}
	if len(skills) == 0 {
		return Vocabulary{}, ErrEmpty
	}

	var states map[string]string
	if len(doc.States) > 0 {
		states = make(map[string]string, len(doc.States))
		for abbr, name := range doc.States {
			abbr = strings.ToUpper(strings.TrimSpace(abbr))
			name = strings.TrimSpace(name)
			if abbr == "" || name == "" {
				continue
			}
			states[abbr] = name
		}
	}

	return Vocabulary{Skills: skills, States: states}, nil
}

// Load reads and parses the vocabulary file at path.
func Load(path string) (Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return Vocabulary{}, fmt.Errorf("%w: path not configured", ErrEmpty)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("%w: %v", ErrEmpty, err)
	}
	v, err := Parse(data)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("load %s: %w", path, err)
	}
	return v, nil
}

// Loader re-reads the vocabulary file whenever its size or modification
// time changes, so edits are picked up by the next run without a restart.
type Loader struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	current Vocabulary
	loaded  bool
}

// NewLoader returns a Loader for path. Nothing is read until Current is called.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Current returns the latest vocabulary. A missing or empty file is an error
// even if an earlier version was loaded.
func (l *Loader) Current() (Vocabulary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if strings.TrimSpace(l.path) == "" {
		return Vocabulary{}, fmt.Errorf("%w: path not configured", ErrEmpty)
	}

	info, err := os.Stat(l.path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("%w: %v", ErrEmpty, err)
	}

	if l.loaded && info.ModTime().Equal(l.modTime) && info.Size() == l.size {
		return l.current, nil
	}

	v, err := Load(l.path)
	if err != nil {
		return Vocabulary{}, err
	}

	l.current = v
	l.modTime = info.ModTime()
	l.size = info.Size()
	l.loaded = true
	return v, nil
}
