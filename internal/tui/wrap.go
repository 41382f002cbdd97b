package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/typespeed/internal/scorer"
)

const wrongSpaceMark = '•'

type styledRune struct {
	s       string
	width   int
	isSpace bool
}

// buildStyledRunes styles each reference rune by its typing state. In word mode a
// completed word with any mistake is styled incorrect as a whole, matching how it scores.
func buildStyledRunes(targetRunes, inputRunes []rune, cursorIndex int, mode scorer.Mode) []styledRune {
	words := findWords(targetRunes)
	currentWord := wordForCursor(words, cursorIndex)
	var wrongWord []bool
	if mode == scorer.ModeWord {
		wrongWord = mistypedWords(words, targetRunes, inputRunes)
	}

	out := make([]styledRune, 0, len(targetRunes))
	for i, target := range targetRunes {
		displayed := target
		style := pendingStyle
		switch {
		case i < len(inputRunes):
			switch {
			case target == ' ' && inputRunes[i] != ' ':
				displayed = wrongSpaceMark
				style = incorrectStyle
			case inputRunes[i] != target:
				style = incorrectStyle
			case wrongWord != nil && wrongWord[wordIndexAt(words, i)]:
				style = incorrectStyle
			default:
				style = correctStyle
			}
		case target != ' ' && currentWord != nil && i >= currentWord.start && i < currentWord.end:
			style = currentWordStyle
		}
		if i == cursorIndex && i >= len(inputRunes) {
			style = style.Underline(true)
		}
		out = append(out, styledRune{
			s:       style.Render(string(displayed)),
			width:   runewidth.RuneWidth(displayed),
			isSpace: target == ' ',
		})
	}
	return out
}

type wordRange struct {
	start int
	end   int
}

func findWords(targetRunes []rune) []wordRange {
	words := []wordRange{}
	start := -1
	for i, r := range targetRunes {
		if r == ' ' {
			if start != -1 {
				words = append(words, wordRange{start: start, end: i})
				start = -1
			}
			continue
		}
		if start == -1 {
			start = i
		}
	}
	if start != -1 {
		words = append(words, wordRange{start: start, end: len(targetRunes)})
	}
	return words
}

// wordIndexAt returns the word containing i, or len(words) for separators.
func wordIndexAt(words []wordRange, i int) int {
	for idx, w := range words {
		if i >= w.start && i < w.end {
			return idx
		}
	}
	return len(words)
}

// mistypedWords flags words whose every rune was typed and at least one differs.
// The extra trailing slot keeps wordIndexAt lookups for separators in range.
func mistypedWords(words []wordRange, targetRunes, inputRunes []rune) []bool {
	wrong := make([]bool, len(words)+1)
	for idx, w := range words {
		if len(inputRunes) < w.end {
			break
		}
		for i := w.start; i < w.end; i++ {
			if inputRunes[i] != targetRunes[i] {
				wrong[idx] = true
				break
			}
		}
	}
	return wrong
}

func wordForCursor(words []wordRange, cursorIndex int) *wordRange {
	if len(words) == 0 {
		return nil
	}
	if cursorIndex < 0 {
		return &words[0]
	}
	for i, w := range words {
		if cursorIndex < w.end {
			return &words[i]
		}
	}
	return &words[len(words)-1]
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

func wrapStyledRunes(runes []styledRune, width int) string {
	if width <= 0 {
		return renderStyledRunes(runes)
	}
	var out strings.Builder
	line := make([]styledRune, 0, len(runes))
	lineWidth := 0
	lastSpaceIdx := -1

	flush := func(upto int) {
		out.WriteString(renderStyledRunes(line[:upto]))
		out.WriteRune('\n')
	}
	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx >= 0 {
				flush(lastSpaceIdx)
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
			} else {
				flush(len(line))
				line = line[:0]
			}
			lineWidth, lastSpaceIdx = measureLine(line)
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	out.WriteString(renderStyledRunes(line))
	return out.String()
}

func measureLine(line []styledRune) (width, lastSpace int) {
	lastSpace = -1
	for i, item := range line {
		width += item.width
		if item.isSpace {
			lastSpace = i
		}
	}
	return width, lastSpace
}
