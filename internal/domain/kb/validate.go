package kb

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	apperrors "github.com/obara/supportdesk/pkg/errors"
)

const (
	minQuestionRunes = 3
	maxQuestionRunes = 300
	maxSymbolRatio   = 0.3
)

// ValidateQuestion applies the input policy to user supplied text: 3 to 300
// runes after trimming, a symbol ratio of at most 30%, and a clean NFKC
// normalization round trip. It is a pure function of the text.
func ValidateQuestion(text string) error {
	trimmed := strings.TrimSpace(text)
	length := utf8.RuneCountInString(trimmed)
	if length < minQuestionRunes || length > maxQuestionRunes {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "question must be 3 to 300 characters", nil)
	}
	if symbolRatio(trimmed) > maxSymbolRatio {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "question contains too many symbols", nil)
	}
	if !utf8.ValidString(trimmed) || !utf8.ValidString(norm.NFKC.String(trimmed)) {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "question is not valid unicode", nil)
	}
	return nil
}

// symbolRatio reports the share of runes outside the allowed alphabet:
// ASCII letters and digits, hiragana, katakana, CJK ideographs, whitespace.
func symbolRatio(text string) float64 {
	total := 0
	symbols := 0
	for _, r := range text {
		total++
		if !isAllowedRune(r) {
			symbols++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(symbols) / float64(total)
}

func isAllowedRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r >= 0x3041 && r <= 0x3093: // hiragana
		return true
	case r >= 0x30A1 && r <= 0x30F6: // katakana
		return true
	case r >= 0x4E00 && r <= 0x9FA0: // CJK ideographs
		return true
	case unicode.IsSpace(r):
		return true
	}
	return false
}
