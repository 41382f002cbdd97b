// Package texts holds the sample passages offered for typing tests.
package texts

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultLang is used when no language is configured.
const DefaultLang = "en"

// ErrUnknownLang is returned when the catalog has no texts for a language.
var ErrUnknownLang = errors.New("no texts for language")

var builtin = map[string][]string{
	"en": {
		"The quick brown fox jumps over the lazy dog.",
		"Programming is the art of telling another human what one wants the computer to do.",
		"Success is not final, failure is not fatal: it is the courage to continue that counts.",
		"The future of technology lies in artificial intelligence and machine learning. As computers become more powerful, they can process vast amounts of data and solve complex problems. Scientists and engineers work together to create smart systems that can understand human language, recognize patterns, and make decisions. These advances are changing the way we live and work, making our daily tasks easier and more efficient.",
		"In the digital age, coding has become an essential skill. Whether you're building websites, developing mobile apps, or analyzing data, programming knowledge opens up endless possibilities. From Python to JavaScript, the tools of modern software development are powerful and accessible to anyone willing to learn.",
		"The world is becoming increasingly connected. Smart devices, the Internet of Things, and cloud computing are transforming how we live and work. As technology advances, it's important to stay informed about the latest trends and developments in the tech industry.",
	},
	"de": {
		"Der schnelle braune Fuchs springt über den faulen Hund",
		"Die Zukunft der Technologie liegt in künstlicher Intelligenz und maschinellem Lernen. Als Computer leistungsfähiger werden, können sie riesige Datenmengen verarbeiten und komplexe Probleme lösen. Wissenschaftler und Ingenieure arbeiten zusammen, um intelligente Systeme zu schaffen, die menschliche Sprache verstehen, Muster erkennen und Entscheidungen treffen können. Diese Fortschritte verändern die Art, wie wir leben und arbeiten, und machen unsere täglichen Aufgaben einfacher und effizienter.",
	},
}

// Catalog picks random texts per language. It is safe for concurrent use.
type Catalog struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	texts map[string][]string
	words map[string]wordSource
}

// NewCatalog returns a catalog with the built-in texts seeded with the current time.
func NewCatalog() *Catalog {
	return NewCatalogWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewCatalogWithSource returns a catalog with the built-in texts drawing from src.
func NewCatalogWithSource(src rand.Source) *Catalog {
	c := &Catalog{rnd: rand.New(src), texts: make(map[string][]string, len(builtin))}
	for lang, list := range builtin {
		c.texts[lang] = append([]string(nil), list...)
	}
	return c
}

// Set replaces the texts for lang.
func (c *Catalog) Set(lang string, list []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts[normalizeLang(lang)] = append([]string(nil), list...)
}

// Pick returns a random text for lang, composed from the word list when one is set.
func (c *Catalog) Pick(lang string) (string, error) {
	lang = normalizeLang(lang)
	c.mu.Lock()
	defer c.mu.Unlock()
	if src, ok := c.words[lang]; ok {
		return compose(c.rnd, src), nil
	}
	list := c.texts[lang]
	if len(list) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownLang, lang)
	}
	return list[c.rnd.Intn(len(list))], nil
}

// Texts returns a copy of the texts for lang.
func (c *Catalog) Texts(lang string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts[normalizeLang(lang)]...)
}

// Langs returns the languages with at least one text, sorted.
func (c *Catalog) Langs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	langs := make([]string, 0, len(c.texts))
	for lang, list := range c.texts {
		if _, ok := c.words[lang]; len(list) > 0 && !ok {
			langs = append(langs, lang)
		}
	}
	for lang := range c.words {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return DefaultLang
	}
	return lang
}

// LoadFile reads one text per line from path, skipping blank lines.
func LoadFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texts file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only texts file.
			_ = cerr
		}
	}()

	var list []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		list = append(list, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read texts file: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("texts file %s is empty", path)
	}
	return list, nil
}
