package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"csreply-backend/internal/inquiries"
)

const minResponseLength = 20

var datePattern = regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일`)

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// checkFormat covers shape and tone markers of the response text.
func (v *Validator) checkFormat(text string) CheckResult {
	issues := []string{}
	if strings.TrimSpace(text) == "" {
		return CheckResult{Passed: false, Issues: append(issues, "Response is empty")}
	}
	lowered := strings.ToLower(text)
	vr := v.rules.Validation

	length := runeLen(text)
	if length < minResponseLength {
		issues = append(issues, fmt.Sprintf("Response is too short (minimum %d characters)", minResponseLength))
	}
	if limit := v.rules.Thresholds.MaxResponseLength; length > limit {
		issues = append(issues, fmt.Sprintf("Response is too long (maximum %d characters)", limit))
	}
	if len(vr.Greetings) > 0 && !containsAny(lowered, vr.Greetings) {
		issues = append(issues, "Response is missing a greeting")
	}
	if len(vr.Closings) > 0 && !containsAny(lowered, vr.Closings) {
		issues = append(issues, "Response is missing a closing")
	}
	if strings.Contains(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n\n") {
		issues = append(issues, "Response contains excessive blank lines")
	}
	for _, phrase := range vr.ForbiddenPhrases {
		if strings.Contains(lowered, phrase) {
			issues = append(issues, fmt.Sprintf("Response contains forbidden phrase %q", phrase))
		}
	}
	if !utf8.ValidString(text) || strings.ContainsRune(text, 0) {
		issues = append(issues, "Response contains characters that cannot be encoded")
	}
	if strings.Contains(text, "??") {
		issues = append(issues, "Response contains a double question mark")
	}
	return CheckResult{Passed: len(issues) == 0, Issues: issues}
}

// checkContent covers relevance, leftovers and per-category compliance.
func (v *Validator) checkContent(text string, inq inquiries.Inquiry) CheckResult {
	issues := []string{}
	lowered := strings.ToLower(text)
	vr := v.rules.Validation

	if len(inq.Keywords) > 0 && !containsAny(lowered, inq.Keywords) {
		issues = append(issues, "Response may not be relevant to the inquiry")
	}

	seen := make(map[string]bool)
	placeholder := func(token string) {
		if seen[token] {
			return
		}
		seen[token] = true
		issues = append(issues, fmt.Sprintf("Response contains placeholder %q", token))
	}
	for _, token := range vr.PlaceholderTokens {
		if strings.Contains(text, token) {
			placeholder(token)
		}
	}
	if re := v.rules.PlaceholderPattern(); re != nil {
		for _, match := range re.FindAllString(text, -1) {
			placeholder(match)
		}
	}

	category := strings.ToLower(inq.ClassifiedCategory)
	if required := vr.CategoryRequirements[category]; len(required) > 0 && !containsAny(lowered, required) {
		issues = append(issues, fmt.Sprintf("Response does not mention %s required for %s inquiries", strings.Join(required, " or "), category))
	}

	year := v.now().Year()
	for _, m := range datePattern.FindAllStringSubmatch(text, -1) {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if y < year-vr.DateYearWindow.Past || y > year+vr.DateYearWindow.Future || mo < 1 || mo > 12 || d < 1 || d > 31 {
			issues = append(issues, fmt.Sprintf("Response contains an invalid date %q", m[0]))
		}
	}

	for _, word := range vr.InappropriateWords {
		if strings.Contains(lowered, word) {
			issues = append(issues, fmt.Sprintf("Response contains inappropriate wording %q", word))
		}
	}
	return CheckResult{Passed: len(issues) == 0, Issues: issues}
}

func containsAny(lowered string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(lowered, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
