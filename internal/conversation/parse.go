package conversation

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var ErrNotANumber = errors.New("not a number")

// ParseYesNo accepts да/нет (and yes/no, y/n) in any case with surrounding
// whitespace. ok is false for anything else.
func ParseYesNo(text string) (answer, ok bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "да", "yes", "y":
		return true, true
	case "нет", "no", "n":
		return false, true
	}
	return false, false
}

// ParseHours reads a real number written with either "." or "," as the
// decimal separator. Any finite value is accepted, negatives included.
func ParseHours(text string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if s == "" {
		return 0, ErrNotANumber
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotANumber
	}
	return v, nil
}
