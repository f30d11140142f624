package memory

import (
	"regexp"
	"strings"
)

// AnalyzerConfig holds the extraction thresholds and limits.
type AnalyzerConfig struct {
	// MinImportance is the score below which extracted units are silently
	// discarded. This is the common case for conversational text.
	MinImportance float64

	// MinWords and MaxWords bound the size of a storable statement.
	// Very short fragments carry no fact; very long ones are low-information.
	MinWords int
	MaxWords int
}

// DefaultAnalyzerConfig returns the extraction defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MinImportance: 0.3,
		MinWords:      3,
		MaxWords:      30,
	}
}

// Analyzer turns raw message text into zero or more scored candidates.
// Extraction is a pure function of the text and the configured thresholds;
// it never touches the network.
type Analyzer struct {
	config AnalyzerConfig
}

// NewAnalyzer creates an analyzer with the given config. Zero-value fields
// fall back to DefaultAnalyzerConfig.
func NewAnalyzer(config AnalyzerConfig) *Analyzer {
	defaults := DefaultAnalyzerConfig()
	if config.MinImportance == 0 {
		config.MinImportance = defaults.MinImportance
	}
	if config.MinWords == 0 {
		config.MinWords = defaults.MinWords
	}
	if config.MaxWords == 0 {
		config.MaxWords = defaults.MaxWords
	}
	return &Analyzer{config: config}
}

var (
	urlPattern   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailPattern = regexp.MustCompile(`\S+@\S+`)
	spacePattern = regexp.MustCompile(`\s+`)

	// sentencePattern captures statement-like units: a run of non-terminator
	// characters followed by optional terminators.
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

	personalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(i|my|we|our)\b.*\b(name|live|work|from|born|age|birthday|address|email|phone|number)\b`),
		regexp.MustCompile(`\b(i am|i'm)\b.*\b(from|a|an|the|working|studying)\b`),
		regexp.MustCompile(`\b(my|our)\b.*\b(favorite|hobby|interest|passion|job|profession|career)\b`),
	}

	preferencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(i|we)\b.*\b(like|love|hate|enjoy|prefer|favorite)\b`),
		regexp.MustCompile(`\b(i|we)\b.*\b(don't|do not|doesn't|does not)\b.*\b(like|love|enjoy|want)\b`),
		regexp.MustCompile(`\b(i|we)\b.*\b(would|wouldn't|would not)\b.*\b(like|love|enjoy|want|prefer)\b`),
	}

	identityPattern = regexp.MustCompile(`\b(my|our)\b.*\b(name|birthday|age)\b|\b(i am|i'm)\b.*\b(from)\b`)

	// signalWords are explicit memory-signaling phrases that boost importance.
	signalWords = []string{"remember", "my name is", "i like", "always", "never"}

	deletionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`forget\s+(?:about\s+|that\s+)?(.*?)(?:\.|$)`),
		regexp.MustCompile(`don't\s+remember\s+(.*?)(?:\.|$)`),
		regexp.MustCompile(`remove\s+(?:the\s+)?(?:memory|information|data)\s+(?:about\s+|that\s+)?(.*?)(?:\.|$)`),
		regexp.MustCompile(`delete\s+(?:the\s+)?(?:memory|information|data)\s+(?:about\s+|that\s+)?(.*?)(?:\.|$)`),
	}
)

// stopwords is a compact English stopword list used for the low-information
// filter. Statements made up almost entirely of these carry no fact.
var stopwords = func() map[string]struct{} {
	words := strings.Fields(`i me my we our you your he him his she her it its
		they them their what which who this that these those am is are was were
		be been being have has had do does did a an the and but if or because
		as until while of at by for with about against between into through
		during before after above below to from up down in out on off over
		under again then once here there when where why how all any both each
		few more most other some such no nor not only own same so than too
		very can will just don't should now`)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()

// Extract segments a message into statement-like units and scores each one.
// Deletion requests become delete-intent candidates carrying the reference
// phrase; storable statements become store-intent candidates; everything
// else is dropped. Dropping is silent — most conversational text is not
// worth remembering.
func (a *Analyzer) Extract(userID, text string) []Candidate {
	cleaned := a.cleanText(text)
	if cleaned == "" {
		return nil
	}

	var candidates []Candidate
	for _, sentence := range a.splitSentences(cleaned) {
		if ref, ok := a.deletionReference(sentence); ok {
			candidates = append(candidates, Candidate{
				UserID:    userID,
				Text:      sentence,
				Intent:    IntentDelete,
				Reference: ref,
			})
			continue
		}

		if !a.storable(sentence) {
			continue
		}

		importance := a.Importance(sentence)
		if importance < a.config.MinImportance {
			continue
		}

		candidates = append(candidates, Candidate{
			UserID:     userID,
			Text:       sentence,
			Importance: importance,
			Intent:     IntentStore,
			Category:   a.categorize(sentence),
		})
	}

	return candidates
}

// Importance scores a unit of text in [0, 1]. The score combines a neutral
// base with boosts for personal information, preferences, and explicit
// memory-signaling keywords, less a length-normalization penalty so long,
// rambling text does not outrank short facts.
func (a *Analyzer) Importance(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.5

	if matchesAny(lower, personalPatterns) {
		score += 0.2
	}
	if matchesAny(lower, preferencePatterns) {
		score += 0.15
	}
	for _, signal := range signalWords {
		if strings.Contains(lower, signal) {
			score += 0.1
			break
		}
	}

	// Length penalty: statements past 20 words lose up to 0.2.
	if words := len(strings.Fields(text)); words > 20 {
		penalty := float64(words-20) * 0.02
		if penalty > 0.2 {
			penalty = 0.2
		}
		score -= penalty
	}

	return ClampImportance(score)
}

func (a *Analyzer) cleanText(text string) string {
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, "")
	text = emailPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

func (a *Analyzer) splitSentences(text string) []string {
	matches := sentencePattern.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		if s := strings.TrimSpace(m); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// deletionReference returns the target phrase of a forget request, if the
// sentence is one.
func (a *Analyzer) deletionReference(sentence string) (string, bool) {
	for _, pattern := range deletionPatterns {
		match := pattern.FindStringSubmatch(sentence)
		if match == nil {
			continue
		}
		if ref := strings.TrimSpace(match[1]); ref != "" {
			return ref, true
		}
	}
	return "", false
}

// storable applies the cheap filters: word-count bounds and the stopword
// ratio. Failing them is not an error, just uninteresting text.
func (a *Analyzer) storable(sentence string) bool {
	words := strings.Fields(strings.Trim(sentence, ".!? "))
	if len(words) < a.config.MinWords || len(words) > a.config.MaxWords {
		return false
	}

	stops := 0
	content := 0
	for _, w := range words {
		w = strings.Trim(strings.ToLower(w), ".,!?;:'\"()")
		if _, ok := stopwords[w]; ok {
			stops++
		} else if w != "" {
			content++
		}
	}
	if content == 0 {
		return false
	}
	return float64(stops)/float64(len(words)) <= 0.7
}

func (a *Analyzer) categorize(sentence string) string {
	lower := strings.ToLower(sentence)
	switch {
	case identityPattern.MatchString(lower):
		return "identity"
	case matchesAny(lower, preferencePatterns):
		return "preference"
	default:
		return "fact"
	}
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
