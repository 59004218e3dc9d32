package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthchat/pkg"
)

func TestClassifyFirstMatchWins(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())
	reply := "Take two ibuprofen and monitor mild symptoms, but call 911 if chest pain occurs"

	res := c.Classify(reply, "", nil)

	assert.Equal(t, pkg.UrgencyCritical, res.UrgencyLevel)
	assert.True(t, strings.HasPrefix(res.Summary, "🚨 URGENT: "))
}

func TestClassifyHealthQuestionRoundTrip(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())

	res := c.Classify("", "I have a severe headache and my chest hurts, should I call 911?", &pkg.Profile{})

	assert.Equal(t, pkg.UrgencyCritical, res.UrgencyLevel)
	assert.Contains(t, res.NextSteps, pkg.NextStep{
		Category: "immediate",
		Action:   "Seek immediate medical care or call emergency services.",
		Priority: "critical",
	})
	assert.Contains(t, res.Symptoms, "headache")
	assert.Empty(t, res.Personalization)
}

func TestClassifyEmptyInputIsTotal(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())

	res := c.Classify("", "", nil)

	assert.Equal(t, pkg.UrgencyNormal, res.UrgencyLevel)
	assert.Equal(t, 0, res.UrgencyScore)
	assert.Equal(t, 0.5, res.Confidence)
	assert.Empty(t, res.Summary)
	assert.NotNil(t, res.KeyPoints)
	assert.NotNil(t, res.Symptoms)
	assert.NotNil(t, res.Conditions)
	assert.NotNil(t, res.Treatments)
	assert.NotNil(t, res.Warnings)
	assert.NotNil(t, res.WhenToSeekHelp)
	assert.NotNil(t, res.Personalization)
	assert.NotNil(t, res.ProductRecommendations)
	require.Len(t, res.NextSteps, 1)
	assert.Equal(t, "monitor", res.NextSteps[0].Category)
	assert.Equal(t, "low", res.NextSteps[0].Priority)
}

func TestClassifyNonHealthText(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())

	res := c.Classify("The quarterly report is attached to the email thread.", "ok", nil)

	assert.Equal(t, pkg.UrgencyNormal, res.UrgencyLevel)
	assert.Equal(t, "The quarterly report is attached to the email thread.", res.Summary)
}

func TestUrgencyScoreIsCapped(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())

	assert.Equal(t, 100, c.UrgencyScore("call 911 emergency chest pain stroke seizure"))
	assert.Equal(t, 25+3, c.UrgencyScore("call 911 but it is mild"))
}

func TestUrgencyLevels(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())
	tests := []struct {
		text string
		want pkg.UrgencyLevel
	}{
		{"you should go to urgent care today", pkg.UrgencyUrgent},
		{"please schedule an appointment", pkg.UrgencyMedium},
		{"this is usually minor", pkg.UrgencyLight},
		{"thanks for asking", pkg.UrgencyNormal},
	}
	for _, tt := range tests {
		level, _ := c.DetermineUrgency(tt.text)
		assert.Equal(t, tt.want, level, tt.text)
	}
}

func TestConfidenceGrowsWithHits(t *testing.T) {
	assert.InDelta(t, 0.7, confidence(pkg.UrgencyLight, 1), 1e-9)
	assert.InDelta(t, 0.9, confidence(pkg.UrgencyLight, 3), 1e-9)
	assert.InDelta(t, 0.95, confidence(pkg.UrgencyCritical, 9), 1e-9)
}

func TestSummaryFallbackAndLabel(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())
	long := strings.Repeat("word ", 60)

	res := c.Classify(long, "", nil)
	assert.Equal(t, strings.TrimSpace(long)[:100]+"...", res.Summary)

	urgent := c.Classify("Go to urgent care within the next few hours please.", "", nil)
	assert.Equal(t, "⚠️ Important: Go to urgent care within the next few hours please.", urgent.Summary)
}

func TestKeyPointsPreferBullets(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())
	reply := "Here is what helps.\n- Drink water\n* Sleep well\n1. Take a break\nThat's all."

	res := c.Classify(reply, "", nil)

	assert.Equal(t, []string{"Drink water", "Sleep well", "Take a break"}, res.KeyPoints)
}

func TestKeyPointsFallBackToSentences(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())
	reply := "Short one. This sentence is comfortably longer than thirty characters. " +
		"Another sentence that is also long enough to count as a point. Tiny."

	res := c.Classify(reply, "", nil)

	assert.Equal(t, []string{
		"This sentence is comfortably longer than thirty characters",
		"Another sentence that is also long enough to count as a point",
	}, res.KeyPoints)
}

func TestWarningsAndSeekHelp(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())
	reply := "Rest as much as you can. Do not take aspirin with alcohol. " +
		"Avoid driving while drowsy. Seek medical attention if the fever lasts more than three days."

	res := c.Classify(reply, "", nil)

	assert.Contains(t, res.Warnings, "Do not take aspirin with alcohol.")
	assert.Contains(t, res.Warnings, "Avoid driving while drowsy.")
	assert.Equal(t, []string{"the fever lasts more than three days"}, res.WhenToSeekHelp)
	assert.Contains(t, res.Treatments, "aspirin")
	assert.Contains(t, res.Symptoms, "fever")
}

func TestWarningsAreDeduplicated(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())

	res := c.Classify("Never, do not, avoid mixing these.", "", nil)

	assert.Equal(t, []string{"Never, do not, avoid mixing these."}, res.Warnings)
}

func TestPersonalization(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())
	age := 72
	profile := &pkg.Profile{
		Age:               &age,
		ChronicConditions: []string{"diabetes", "asthma"},
		Allergies:         []string{"penicillin"},
		Medications:       []string{"metformin"},
		Pregnant:          true,
	}

	res := c.Classify("Rest.", "", profile)

	require.Len(t, res.Personalization, 5)
	assert.Contains(t, res.Personalization[0], "65")
	assert.Contains(t, res.Personalization[1], "diabetes and asthma")
	assert.Contains(t, res.Personalization[2], "penicillin")
	assert.Contains(t, res.Personalization[3], "metformin")
	assert.Contains(t, res.Personalization[4], "pregnancy")

	young := 12
	teen := c.Classify("Rest.", "", &pkg.Profile{Age: &young})
	require.Len(t, teen.Personalization, 1)
	assert.Contains(t, teen.Personalization[0], "18")

	adult := 40
	assert.Empty(t, c.Classify("Rest.", "", &pkg.Profile{Age: &adult}).Personalization)
}

func TestClassifierUsesInjectedVocabulary(t *testing.T) {
	c := NewClassifier(Vocabulary{CriticalPhrases: []string{"Purple Alert"}})

	res := c.Classify("purple alert in effect", "", nil)

	assert.Equal(t, pkg.UrgencyCritical, res.UrgencyLevel)
	assert.Equal(t, 25, res.UrgencyScore)
	require.Len(t, res.NextSteps, 1)
	assert.Equal(t, "monitor", res.NextSteps[0].Category)
}

func TestFallbackRepliesMatchNoTable(t *testing.T) {
	c := NewClassifier(DefaultVocabulary())
	for _, msg := range fallbackMessages {
		res := c.Classify(msg, "", nil)
		assert.Equal(t, pkg.UrgencyNormal, res.UrgencyLevel, msg)
		assert.Zero(t, res.UrgencyScore, msg)
		assert.Empty(t, res.Symptoms, msg)
		assert.Empty(t, res.Conditions, msg)
		assert.Empty(t, res.Treatments, msg)
		assert.Empty(t, res.Warnings, msg)
		assert.Empty(t, res.WhenToSeekHelp, msg)
		require.Len(t, res.NextSteps, 1, msg)
		assert.Equal(t, "low", res.NextSteps[0].Priority, msg)
	}
}
