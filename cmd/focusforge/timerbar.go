package main

import (
	"fmt"
	"math"
	"strings"
)

const (
	timerBarLength     = 20
	timerBarFilledChar = "⣶"
	timerBarEmptyChar  = "⡀"
)

// timerBar draws the share of the phase still remaining.
func timerBar(remainingSeconds, phaseSeconds int) string {
	if remainingSeconds <= 0 || phaseSeconds <= 0 {
		return strings.Repeat(timerBarEmptyChar, timerBarLength)
	}
	percentage := float64(remainingSeconds) / float64(phaseSeconds)
	filled := min(int(math.Round(percentage*timerBarLength*10)/10), timerBarLength)
	return strings.Repeat(timerBarFilledChar, filled) + strings.Repeat(timerBarEmptyChar, timerBarLength-filled)
}

func clock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
