package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)
)

// artifacts replaces ligatures and invisible characters tesseract emits.
var artifacts = strings.NewReplacer(
	"\ufb01", "fi",
	"\ufb02", "fl",
	"\ufb00", "ff",
	"\u00a0", " ",
	"\u200b", "",
	"\ufeff", "",
)

// Normalize collapses noisy whitespace and fixes common OCR artifacts.
// Conservative: keeps line breaks; collapses >2 newlines into a single blank line.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = artifacts.Replace(s)
	s = strings.ReplaceAll(s, "\f", "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var (
	reDigitRun = regexp.MustCompile(`(?:\d[ \t\-]?){6,}`)
	reNonDigit = regexp.MustCompile(`\D`)
)

// MergeText combines a raw and a preprocessed OCR pass into one labelled text:
// PREPROCESSED_OCR, RAW_OCR, NUMERIC_TOKENS (digit runs of 6 or more, separators
// removed, deduplicated) and RAW_NUMERIC_LINES. Empty sections are left out.
func MergeText(raw, preprocessed string) string {
	var parts []string
	if p := strings.TrimSpace(preprocessed); p != "" {
		parts = append(parts, "PREPROCESSED_OCR\n"+p)
	}
	if r := strings.TrimSpace(raw); r != "" {
		parts = append(parts, "RAW_OCR\n"+r)
	}
	if tokens := numericTokens(raw, preprocessed); len(tokens) > 0 {
		parts = append(parts, "NUMERIC_TOKENS\n"+strings.Join(tokens, " "))
	}
	if lines := numericLines(raw); len(lines) > 0 {
		parts = append(parts, "RAW_NUMERIC_LINES\n"+strings.Join(lines, "\n"))
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func numericTokens(texts ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range texts {
		for _, m := range reDigitRun.FindAllString(t, -1) {
			compact := reNonDigit.ReplaceAllString(m, "")
			if len(compact) < 6 || seen[compact] {
				continue
			}
			seen[compact] = true
			out = append(out, compact)
		}
	}
	return out
}

func numericLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if len(reNonDigit.ReplaceAllString(line, "")) < 6 {
			continue
		}
		if l := strings.Join(strings.Fields(line), " "); l != "" {
			out = append(out, l)
		}
	}
	return out
}

var (
	reDate   = regexp.MustCompile(`\b((19|20)\d{2}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.](19|20)?\d{2})\b`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|inr|jpy|kwd|aed|sar)\b|[$£€]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2,3})\b|\b\d+\.\d{2,3}\b`)
)

// heuristicConfidence scores how document-like a text looks: a date, a currency,
// an amount and some length each add to a 0.2 base.
func heuristicConfidence(txt string) float64 {
	txtL := strings.ToLower(txt)
	score := 0.2
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
