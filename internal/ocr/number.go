package ocr

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// digitSeparators are dropped when they sit between two digits ("1,234", "1 234")
const digitSeparators = ", '_."

// FragmentNumber returns the longest run of digits in text after removing
// group separators, and its digit count. Fullwidth digits are folded to
// ASCII. Runs that do not fit in an int64 are ignored.
func FragmentNumber(text string) (value int64, digits int, ok bool) {
	runes := []rune(width.Narrow.String(text))

	var b strings.Builder
	for i, r := range runes {
		if strings.ContainsRune(digitSeparators, r) &&
			i > 0 && i < len(runes)-1 && isDigit(runes[i-1]) && isDigit(runes[i+1]) {
			continue
		}
		b.WriteRune(r)
	}

	for run := range strings.FieldsFuncSeq(b.String(), func(r rune) bool { return !isDigit(r) }) {
		if len(run) <= digits {
			continue
		}
		v, err := strconv.ParseInt(run, 10, 64)
		if err != nil {
			continue
		}
		value, digits, ok = v, len(run), true
	}
	return value, digits, ok
}

// PrimaryNumber picks the number of the fragment with the most digits. Ties
// go to the higher confidence, then to the earlier fragment. It returns the
// value and the index of the chosen fragment.
func PrimaryNumber(fragments []Fragment) (value int64, index int, ok bool) {
	bestDigits := 0
	bestConfidence := 0.0
	index = -1

	for i, f := range fragments {
		v, digits, found := FragmentNumber(f.Text)
		if !found {
			continue
		}
		if digits > bestDigits || (digits == bestDigits && f.Confidence > bestConfidence) {
			value, index, bestDigits, bestConfidence = v, i, digits, f.Confidence
		}
	}
	return value, index, index >= 0
}

func isDigit(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsDigit(r)
}
