package texts

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"
)

// DefaultPunct is the punctuation set appended to composed words.
const DefaultPunct = ".,!?;:"

// DefaultWordCount is the length of a composed text.
const DefaultWordCount = 25

// WordOptions controls texts composed from a word list.
type WordOptions struct {
	Count    int
	CapsPct  float64
	PunctPct float64
	PunctSet string
}

type wordSource struct {
	words []string
	opts  WordOptions
	punct []rune
}

// Validate rejects options that cannot compose a text.
func (o WordOptions) Validate() error {
	if o.Count <= 0 {
		return fmt.Errorf("word count must be > 0")
	}
	if o.CapsPct < 0 || o.CapsPct > 1 {
		return fmt.Errorf("caps probability must be between 0 and 1")
	}
	if o.PunctPct < 0 || o.PunctPct > 1 {
		return fmt.Errorf("punctuation probability must be between 0 and 1")
	}
	if o.PunctPct > 0 && o.PunctSet == "" {
		return fmt.Errorf("punctuation set must not be empty")
	}
	return nil
}

// LoadWords reads one word per line from path and drops words that do not suit lang.
func LoadWords(path, lang string) ([]string, error) {
	lines, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	keep := filterForLang(lang)
	words := make([]string, 0, len(lines))
	for _, line := range lines {
		if keep(line) {
			words = append(words, line)
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("word list %s has no usable %s words", path, normalizeLang(lang))
	}
	return words, nil
}

// SetWords makes Pick compose a fresh text for lang from words on every call.
func (c *Catalog) SetWords(lang string, words []string, opts WordOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if len(words) == 0 {
		return fmt.Errorf("word list is empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.words == nil {
		c.words = make(map[string]wordSource)
	}
	c.words[normalizeLang(lang)] = wordSource{
		words: append([]string(nil), words...),
		opts:  opts,
		punct: []rune(opts.PunctSet),
	}
	return nil
}

func compose(rnd *rand.Rand, src wordSource) string {
	out := make([]string, 0, src.opts.Count)
	for i := 0; i < src.opts.Count; i++ {
		word := src.words[rnd.Intn(len(src.words))]
		word = applyCaps(rnd, word, src.opts.CapsPct)
		word = applyPunct(rnd, word, src.opts.PunctPct, src.punct)
		out = append(out, word)
	}
	return strings.Join(out, " ")
}

func applyCaps(rnd *rand.Rand, word string, capsPct float64) string {
	if capsPct <= 0 || rnd.Float64() > capsPct {
		return word
	}
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func applyPunct(rnd *rand.Rand, word string, punctPct float64, punctSet []rune) string {
	if punctPct <= 0 || len(punctSet) == 0 || rnd.Float64() > punctPct {
		return word
	}
	return word + string(punctSet[rnd.Intn(len(punctSet))])
}

func filterForLang(lang string) func(string) bool {
	switch normalizeLang(lang) {
	case "en":
		return isLowerASCII
	default:
		return func(word string) bool { return !strings.ContainsFunc(word, unicode.IsSpace) }
	}
}

func isLowerASCII(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < 'a' || word[i] > 'z' {
			return false
		}
	}
	return true
}
