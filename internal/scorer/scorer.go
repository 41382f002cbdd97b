// Package scorer converts a finished typing attempt into WPM and accuracy.
package scorer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/typespeed/internal/model"
)

// Mode selects how accuracy is computed.
type Mode string

const (
	// ModeWord compares whitespace-separated words at the same position.
	ModeWord Mode = "word"
	// ModeChar compares characters at the same index against the reference length.
	ModeChar Mode = "char"
)

// Modes lists the supported accuracy modes.
var Modes = []Mode{ModeWord, ModeChar}

// ParseMode returns the Mode for its name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeWord:
		return ModeWord, nil
	case ModeChar:
		return ModeChar, nil
	default:
		return "", fmt.Errorf("%w: %q (expected word or char)", model.ErrInvalidMode, s)
	}
}

// Score computes WPM and accuracy, both rounded to one decimal.
func Score(reference, typed string, elapsedSeconds float64, mode Mode) (model.Metrics, error) {
	if math.IsNaN(elapsedSeconds) || elapsedSeconds <= 0 {
		return model.Metrics{}, model.ErrInvalidDuration
	}
	if reference == "" {
		return model.Metrics{}, model.ErrEmptyReference
	}

	var acc float64
	switch mode {
	case ModeWord:
		acc = WordAccuracy(reference, typed)
	case ModeChar:
		acc = CharAccuracy(reference, typed)
	default:
		return model.Metrics{}, fmt.Errorf("%w: %q", model.ErrInvalidMode, mode)
	}

	wpm := Round1(float64(WordCount(typed)) / (elapsedSeconds / 60))
	if !Finite(wpm) {
		// Durations this small overflow the rate.
		return model.Metrics{}, fmt.Errorf("%w: %g seconds is too short", model.ErrInvalidDuration, elapsedSeconds)
	}
	return model.Metrics{
		WPM:      wpm,
		Accuracy: Round1(acc),
	}, nil
}

// ScoreDuration is Score with a time.Duration.
func ScoreDuration(reference, typed string, elapsed time.Duration, mode Mode) (model.Metrics, error) {
	return Score(reference, typed, elapsed.Seconds(), mode)
}

// WordCount counts non-empty tokens separated by runs of whitespace.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// WordAccuracy is the share of typed words equal to the reference word at the same position.
func WordAccuracy(reference, typed string) float64 {
	typedWords := strings.Fields(typed)
	if len(typedWords) == 0 {
		return 0
	}
	refWords := strings.Fields(reference)
	matches := 0
	for i := 0; i < len(typedWords) && i < len(refWords); i++ {
		if typedWords[i] == refWords[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(typedWords)) * 100
}

// CharAccuracy is the count of equal runes at the same index over the reference length.
func CharAccuracy(reference, typed string) float64 {
	refRunes := []rune(reference)
	if len(refRunes) == 0 {
		return 0
	}
	typedRunes := []rune(typed)
	matches := 0
	for i := 0; i < len(refRunes) && i < len(typedRunes); i++ {
		if refRunes[i] == typedRunes[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(refRunes)) * 100
}

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Finite reports whether v is neither NaN nor an infinity.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
