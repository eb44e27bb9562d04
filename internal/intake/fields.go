package intake

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	maxDescriptionRunes = 200
	minKeywordSentence  = 10
	minFallbackSentence = 15
	maxOffsetDays       = 3650
)

// nameStopWords end a captured name: locatives, conjunctions, modal verbs, pronouns
var nameStopWords = []string{
	"from", "in", "at", "of", "se", "pin", "contact", "phone", "number", "mobile",
	"area", "city", "district", "village", "sector", "block", "ward",
	"and", "but", "or", "calling", "speaking",
	"am", "is", "are", "was", "were", "have", "has", "had", "will", "shall", "can", "may",
	"should", "would", "could", "might", "must", "do", "does", "did",
	"to", "for", "with", "by", "on", "as", "if", "that", "than", "then", "when", "while",
	"where", "who", "whom", "whose", "which", "what", "how", "why",
	"my", "your", "our", "his", "her", "their", "this", "here", "there",
	"a", "an", "the", "not", "very", "really", "also", "too", "so",
	"facing", "having", "living", "residing", "staying", "writing", "reporting",
	"complaining", "going", "getting", "sir", "madam", "ji", "please",
}

// locationStopWords also end a place phrase at time and connective words
var locationStopWords = append([]string{
	"since", "last", "past", "ago", "till", "until", "during", "near", "after", "before",
	"because", "due", "yesterday", "today", "tonight",
}, nameStopWords...)

var (
	nameStopSet    = toSet(nameStopWords)
	nameStopRe     = regexp.MustCompile(`(?i)[.,;:!?\d]|\b(?:` + strings.Join(nameStopWords, "|") + `)\b`)
	locationStopRe = regexp.MustCompile(`(?i)[.,;:!?\d]|\b(?:` + strings.Join(locationStopWords, "|") + `)\b`)
	nonNameRe   = regexp.MustCompile(`[^A-Za-z .]`)

	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm|this is)[\s,]+([A-Za-z .]{2,60})`),
		regexp.MustCompile(`(?i)\b(?:name|naam)\s*:[\s,]*([A-Za-z .]{2,60})`),
		regexp.MustCompile(`(?i)\b(?:speaking|calling)[\s,]+([A-Za-z .]{2,60})`),
	}
	nameFallback = regexp.MustCompile(`(?i)\b(?:i am|name\s*:)[\s,]*([A-Za-z]{2,20})`)

	phoneRe = regexp.MustCompile(`(?:\+?91[\s-]?)?[6-9]\d{9}`)

	fromRe      = regexp.MustCompile(`(?i)\bfrom\s+([A-Za-z][A-Za-z ]{1,40})`)
	pinMarkerRe = regexp.MustCompile(`(?i)\bpin(?:\s*code)?\s*[:\-]?\s*(\d{6})\b`)
	prepRe      = regexp.MustCompile(`(?i)\b(?:in|at|area|city|district|village|sector|block|ward)\s+([A-Za-z][A-Za-z ]{2,39})`)
	pinTokenRe  = regexp.MustCompile(`\b\d{6}\b`)
)

// extractName tries the self-introduction patterns in order, then a looser single-word fallback
func (n *Normalizer) extractName(text string) string {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if name := n.cleanName(m[1]); name != "" {
			return name
		}
	}

	if m := nameFallback.FindStringSubmatch(text); m != nil {
		word := m[1]
		if !nameStopSet[strings.ToLower(word)] && !n.gazetteer.IsPlace(word) {
			return word
		}
	}
	return ""
}

func (n *Normalizer) cleanName(raw string) string {
	if loc := nameStopRe.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]]
	}
	raw = nonNameRe.ReplaceAllString(raw, "")
	raw = strings.Trim(strings.Join(strings.Fields(raw), " "), ". ")
	if raw == "" || n.gazetteer.IsPlace(raw) {
		return ""
	}
	return raw
}

// nameFromAnswer accepts a bare reply such as "Ravi Kumar" to the name question
func (n *Normalizer) nameFromAnswer(answer string) string {
	if answer == "" {
		return ""
	}
	if name := n.extractName(answer); name != "" {
		return name
	}

	name := n.cleanName(answer)
	words := strings.Fields(name)
	if len(words) == 0 || len(words) > 4 {
		return ""
	}
	for _, w := range words {
		if len(strings.Trim(w, ".")) < 2 {
			return ""
		}
	}
	return name
}

// ExtractPhone returns the first national mobile number in text as bare 10 digits.
// Runs embedded in a longer digit string are rejected.
func ExtractPhone(text string) string {
	for _, loc := range phoneRe.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && isASCIIDigit(text[loc[0]-1]) {
			continue
		}
		if loc[1] < len(text) && isASCIIDigit(text[loc[1]]) {
			continue
		}

		digits := onlyDigits(text[loc[0]:loc[1]])
		if len(digits) == 12 && strings.HasPrefix(digits, "91") {
			digits = digits[2:]
		}
		if len(digits) == 10 {
			return digits
		}
	}
	return ""
}

// extractLocation applies the location rules in priority order
func (n *Normalizer) extractLocation(text string) string {
	// (a) "from CITY[, PIN dddddd]"
	if m := fromRe.FindStringSubmatchIndex(text); m != nil {
		city := truncateAtStop(text[m[2]:m[3]], 3)
		pin := ""
		if pm := pinMarkerRe.FindStringSubmatch(text[m[0]:]); pm != nil {
			pin = pm[1]
		}
		if city != "" && (n.gazetteer.IsPlace(city) || pin != "") {
			if pin != "" {
				return titleCase(city) + ", PIN " + pin
			}
			return titleCase(city)
		}
	}

	// (b) in-area postal code token
	if code, ok := n.gazetteer.FindPostalCode(text); ok {
		return "PIN " + code
	}

	place, hasPlace := n.gazetteer.FindPlace(text)

	// (c) prepositional phrase, unless a gazetteer place is mentioned anywhere
	if !hasPlace {
		for _, m := range prepRe.FindAllStringSubmatch(text, -1) {
			phrase := truncateAtStop(m[1], 0)
			if len(phrase) < 3 || n.hasKeyword(phrase) {
				continue
			}
			return titleCase(phrase)
		}
	}

	// (d) gazetteer mention
	if hasPlace {
		return titleCase(place)
	}
	return ""
}

// locationFromAnswer accepts a reply to the location question
func (n *Normalizer) locationFromAnswer(answer string) string {
	if answer == "" {
		return ""
	}
	if loc := n.extractLocation(answer); loc != "" {
		return loc
	}
	phrase := truncateAtStop(answer, 0)
	if len(phrase) < 3 {
		return ""
	}
	return titleCase(phrase)
}

// extractDescription picks the first keyword sentence, else the longest sentence
func (n *Normalizer) extractDescription(text string) string {
	sentences := splitSentences(text)

	for _, s := range sentences {
		if utf8.RuneCountInString(s) < minKeywordSentence {
			continue
		}
		if n.hasKeyword(s) {
			return capRunes(trimNonWord(s), maxDescriptionRunes)
		}
	}

	longest := ""
	for _, s := range sentences {
		if utf8.RuneCountInString(s) > utf8.RuneCountInString(longest) {
			longest = s
		}
	}
	if utf8.RuneCountInString(longest) > minFallbackSentence {
		return capRunes(longest, maxDescriptionRunes)
	}
	return ""
}

func (n *Normalizer) hasKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range n.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// splitSentences splits on terminal punctuation, the danda and newlines
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, r := range text {
		switch r {
		case '.', '!', '?', '।', '\n':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return sentences
}

type offsetUnit int

const (
	unitDays offsetUnit = iota
	unitWeeks
	unitMonths
	unitYesterday
	unitToday
	unitLastWeek
	unitDate
)

type timePattern struct {
	re   *regexp.Regexp
	unit offsetUnit
}

var incidentPatterns = []timePattern{
	{regexp.MustCompile(`(?i)\bfor\s+(?:the\s+)?(?:past|last)\s+(\d+)\s+days?\b`), unitDays},
	{regexp.MustCompile(`(?i)\bfor\s+(\d+)\s+days?\b`), unitDays},
	{regexp.MustCompile(`(?i)\bsince\s+(?:the\s+)?last\s+(\d+)\s+days?\b`), unitDays},
	{regexp.MustCompile(`(?i)\bfor\s+(?:the\s+)?(?:(?:past|last)\s+)?(\d+)\s+weeks?\b`), unitWeeks},
	{regexp.MustCompile(`(?i)\bfor\s+(?:the\s+)?(?:(?:past|last)\s+)?(\d+)\s+months?\b`), unitMonths},
	{regexp.MustCompile(`(?i)\bsince\s+yesterday\b`), unitYesterday},
	{regexp.MustCompile(`(?i)\bsince\s+today\b`), unitToday},
	{regexp.MustCompile(`(?i)\bsince\s+last\s+week\b`), unitLastWeek},
	{regexp.MustCompile(`(?i)\btime\s*[:\-]?\s*(\d+)\s*-?\s*days?\b`), unitDays},
	{regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4}|\d{2})\b`), unitDate},
	{regexp.MustCompile(`(?i)\bhappened\s+(\d+)\s+days?\s+ago\b`), unitDays},
	{regexp.MustCompile(`(?i)\bhappened\s+yesterday\b`), unitYesterday},
	{regexp.MustCompile(`(?i)\b(\d+)\s+days?\s+ago\b`), unitDays},
}

// answerPatterns read terse replies such as "3 days" or "yesterday"
var answerPatterns = []timePattern{
	{regexp.MustCompile(`(?i)\b(\d+)\s*days?\b`), unitDays},
	{regexp.MustCompile(`(?i)\b(\d+)\s*weeks?\b`), unitWeeks},
	{regexp.MustCompile(`(?i)\b(\d+)\s*months?\b`), unitMonths},
	{regexp.MustCompile(`(?i)\byesterday\b`), unitYesterday},
	{regexp.MustCompile(`(?i)\btoday\b`), unitToday},
	{regexp.MustCompile(`(?i)\blast\s+week\b`), unitLastWeek},
}

// extractIncidentStart resolves the first matching relative-time pattern against now
func (n *Normalizer) extractIncidentStart(text string, now time.Time) (time.Time, bool) {
	return resolveFirst(incidentPatterns, text, now)
}

func (n *Normalizer) incidentFromAnswer(answer string, now time.Time) (time.Time, bool) {
	if answer == "" {
		return time.Time{}, false
	}
	if t, ok := resolveFirst(incidentPatterns, answer, now); ok {
		return t, true
	}
	return resolveFirst(answerPatterns, answer, now)
}

func resolveFirst(patterns []timePattern, text string, now time.Time) (time.Time, bool) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if t, ok := resolveOffset(p.unit, m, now); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func resolveOffset(unit offsetUnit, m []string, now time.Time) (time.Time, bool) {
	switch unit {
	case unitYesterday:
		return now.AddDate(0, 0, -1), true
	case unitToday:
		return now, true
	case unitLastWeek:
		return now.AddDate(0, 0, -7), true
	case unitDate:
		return parseDateLiteral(m[1], m[2], m[3], now.Location())
	}

	count, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	days := count
	switch unit {
	case unitWeeks:
		days = count * 7
	case unitMonths:
		days = count * 30
	}
	if days < 0 || days > maxOffsetDays {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -days), true
}

// parseDateLiteral reads day-month-year; two-digit years are 20xx
func parseDateLiteral(ds, ms, ys string, loc *time.Location) (time.Time, bool) {
	day, err1 := strconv.Atoi(ds)
	month, err2 := strconv.Atoi(ms)
	year, err3 := strconv.Atoi(ys)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if len(ys) == 2 {
		year += 2000
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// truncateAtStop cuts a place phrase at the first stop word or punctuation and
// keeps at most maxWords words (0 means no limit)
func truncateAtStop(s string, maxWords int) string {
	if loc := locationStopRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	words := strings.Fields(nonNameRe.ReplaceAllString(s, " "))
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Trim(strings.Join(words, " "), ". ")
}

func hasPINMarker(s string) bool {
	return pinMarkerRe.MatchString(s) || pinTokenRe.MatchString(s)
}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

func trimNonWord(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_')
	})
}

func capRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func onlyDigits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if isASCIIDigit(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isASCIIDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
