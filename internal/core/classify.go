package core

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"healthchat/pkg"
)

// Points per matched phrase for the numeric urgency score.
const (
	criticalWeight = 25
	urgentWeight   = 15
	mediumWeight   = 8
	lightWeight    = 3
	maxUrgency     = 100

	maxFallbackKeyPoints = 5
)

var (
	sentenceSplitRE = regexp.MustCompile(`[.!?]+`)
	bulletLineRE    = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+?)\s*$`)
)

var urgencyLabels = map[pkg.UrgencyLevel]string{
	pkg.UrgencyCritical: "🚨 URGENT: ",
	pkg.UrgencyUrgent:   "⚠️ Important: ",
}

type urgencyTier struct {
	level   pkg.UrgencyLevel
	phrases []string
	weight  int
}

type phraseMatcher struct {
	phrase string
	re     *regexp.Regexp
}

// Classifier turns a free-text reply into a ClassificationResult using fixed
// phrase tables.  Every method is total: no input makes it fail.
type Classifier struct {
	vocab    Vocabulary
	tiers    []urgencyTier
	warnings []phraseMatcher
	seekHelp []phraseMatcher
}

// NewClassifier compiles the phrase tables of vocab.
func NewClassifier(vocab Vocabulary) *Classifier {
	c := &Classifier{
		vocab: vocab,
		tiers: []urgencyTier{
			{pkg.UrgencyCritical, lowerAll(vocab.CriticalPhrases), criticalWeight},
			{pkg.UrgencyUrgent, lowerAll(vocab.UrgentPhrases), urgentWeight},
			{pkg.UrgencyMedium, lowerAll(vocab.MediumPhrases), mediumWeight},
			{pkg.UrgencyLight, lowerAll(vocab.LightPhrases), lightWeight},
		},
	}
	for _, p := range vocab.WarningPhrases {
		c.warnings = append(c.warnings, phraseMatcher{
			phrase: p,
			re:     regexp.MustCompile(`(?i)[^.!?\n]*` + regexp.QuoteMeta(p) + `[^.!?\n]*[.!?]?`),
		})
	}
	for _, p := range vocab.SeekHelpLeads {
		c.seekHelp = append(c.seekHelp, phraseMatcher{
			phrase: p,
			re:     regexp.MustCompile(`(?i)` + regexp.QuoteMeta(p) + `\s*([^.!?\n]+)`),
		})
	}
	return c
}

// Classify analyses reply together with the user's message.  profile may be
// nil.
func (c *Classifier) Classify(reply, userMessage string, profile *pkg.Profile) pkg.ClassificationResult {
	combined := strings.ToLower(reply + " " + userMessage)

	level, levelHits := c.DetermineUrgency(combined)
	res := pkg.ClassificationResult{
		UrgencyLevel:           level,
		UrgencyScore:           c.UrgencyScore(combined),
		Confidence:             confidence(level, levelHits),
		Summary:                c.summary(reply, level),
		KeyPoints:              c.keyPoints(reply),
		Symptoms:               matchVocabulary(combined, c.vocab.Symptoms),
		Conditions:             matchVocabulary(combined, c.vocab.Conditions),
		Treatments:             matchVocabulary(strings.ToLower(reply), c.vocab.Treatments),
		Warnings:               c.extractWarnings(reply),
		NextSteps:              c.nextSteps(combined),
		WhenToSeekHelp:         c.extractSeekHelp(reply),
		Personalization:        personalize(profile),
		ProductRecommendations: []pkg.ProductLinks{},
	}
	return res
}

// DetermineUrgency returns the first tier, in priority order, with at least
// one phrase present in text, along with the number of that tier's phrases
// found.  text must already be lowercased.
func (c *Classifier) DetermineUrgency(text string) (pkg.UrgencyLevel, int) {
	for _, tier := range c.tiers {
		hits := 0
		for _, p := range tier.phrases {
			if p != "" && strings.Contains(text, p) {
				hits++
			}
		}
		if hits > 0 {
			return tier.level, hits
		}
	}
	return pkg.UrgencyNormal, 0
}

// UrgencyScore awards weighted points for every matched phrase of every
// tier, capped at 100.  It does not influence the level.
func (c *Classifier) UrgencyScore(text string) int {
	score := 0
	for _, tier := range c.tiers {
		for _, p := range tier.phrases {
			if p != "" && strings.Contains(text, p) {
				score += tier.weight
			}
		}
	}
	if score > maxUrgency {
		return maxUrgency
	}
	return score
}

// confidence grows with the number of phrases backing the chosen level.
func confidence(level pkg.UrgencyLevel, hits int) float64 {
	if level == pkg.UrgencyNormal {
		return 0.5
	}
	v := 0.6 + 0.1*float64(hits)
	if v > 0.95 {
		v = 0.95
	}
	return v
}

func (c *Classifier) summary(reply string, level pkg.UrgencyLevel) string {
	text := strings.TrimSpace(reply)
	if text == "" {
		return ""
	}
	summary := ""
	for _, s := range splitSentences(text) {
		n := utf8.RuneCountInString(s)
		if n > 20 && n < 150 {
			summary = s + "."
			break
		}
	}
	if summary == "" {
		r := []rune(text)
		if len(r) > 100 {
			r = r[:100]
		}
		summary = string(r) + "..."
	}
	return urgencyLabels[level] + summary
}

func (c *Classifier) keyPoints(reply string) []string {
	points := []string{}
	for _, line := range strings.Split(reply, "\n") {
		if m := bulletLineRE.FindStringSubmatch(line); m != nil {
			points = append(points, strings.TrimSpace(m[1]))
		}
	}
	if len(points) > 0 {
		return points
	}
	for _, s := range splitSentences(reply) {
		n := utf8.RuneCountInString(s)
		if n > 30 && n < 200 {
			points = append(points, s)
			if len(points) == maxFallbackKeyPoints {
				break
			}
		}
	}
	return points
}

// extractWarnings returns the sentence containing the first occurrence of
// each warning phrase, without duplicates.
func (c *Classifier) extractWarnings(reply string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, w := range c.warnings {
		s := strings.TrimSpace(w.re.FindString(reply))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// extractSeekHelp returns the criteria following each lead-in phrase.
func (c *Classifier) extractSeekHelp(reply string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, l := range c.seekHelp {
		m := l.re.FindStringSubmatch(reply)
		if m == nil {
			continue
		}
		s := strings.TrimSpace(m[1])
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (c *Classifier) nextSteps(text string) []pkg.NextStep {
	steps := []pkg.NextStep{}
	for _, rule := range c.vocab.NextSteps {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				steps = append(steps, pkg.NextStep{Category: rule.Category, Action: rule.Action, Priority: rule.Priority})
				break
			}
		}
	}
	if len(steps) == 0 {
		steps = append(steps, pkg.NextStep{
			Category: defaultNextStep.Category,
			Action:   defaultNextStep.Action,
			Priority: defaultNextStep.Priority,
		})
	}
	return steps
}

// personalize emits one advisory per profile attribute present.
func personalize(p *pkg.Profile) []string {
	out := []string{}
	if p == nil {
		return out
	}
	if p.Age != nil {
		switch {
		case *p.Age >= 65:
			out = append(out, "At 65 and over, symptoms can progress faster and medicines may act more strongly; consider involving your doctor earlier than you otherwise would.")
		case *p.Age <= 18:
			out = append(out, "For anyone 18 or younger, medication doses differ from adult doses; check with a pediatric provider or pharmacist before treating.")
		}
	}
	if len(p.ChronicConditions) > 0 {
		out = append(out, fmt.Sprintf("Because you live with %s, new symptoms may interact with your condition; mention them at your next check-up or sooner if they worsen.", joinList(p.ChronicConditions)))
	}
	if len(p.Allergies) > 0 {
		out = append(out, fmt.Sprintf("You have reported allergies to %s; check every product label and tell providers about these allergies before any treatment.", joinList(p.Allergies)))
	}
	if len(p.Medications) > 0 {
		out = append(out, fmt.Sprintf("You are taking %s; ask a pharmacist about interactions before adding any new medicine or supplement.", joinList(p.Medications)))
	}
	if p.Pregnant {
		out = append(out, "During pregnancy many common medicines are not recommended; consult your obstetric provider before taking anything new.")
	}
	return out
}

// matchVocabulary returns the terms of vocab found in text, in table order.
func matchVocabulary(text string, vocab []string) []string {
	out := []string{}
	for _, term := range vocab {
		if term != "" && strings.Contains(text, strings.ToLower(term)) {
			out = append(out, term)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceSplitRE.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
