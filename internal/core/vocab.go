package core

// VocabularyVersion identifies the revision of the static tables below.
// Bump it whenever a list changes so classification results stored in
// message metadata can be traced back to the tables that produced them.
const VocabularyVersion = "2024.1"

// NextStepRule maps a keyword list to one next-step entry.
type NextStepRule struct {
	Category string
	Keywords []string
	Action   string
	Priority string
}

// Vocabulary bundles every phrase table used by the keyword extractor, the
// classifier and the product recommender.  Tests substitute their own.
type Vocabulary struct {
	StopWords []string

	CriticalPhrases []string
	UrgentPhrases   []string
	MediumPhrases   []string
	LightPhrases    []string

	Symptoms   []string
	Conditions []string
	Treatments []string

	WarningPhrases []string
	SeekHelpLeads  []string
	NextSteps      []NextStepRule

	Products        []string
	ProductCategory map[string]string
}

// DefaultVocabulary returns a fresh copy of the built-in tables.
func DefaultVocabulary() Vocabulary {
	cats := make(map[string]string, len(defaultProductCategory))
	for k, v := range defaultProductCategory {
		cats[k] = v
	}
	return Vocabulary{
		StopWords:       append([]string(nil), defaultStopWords...),
		CriticalPhrases: append([]string(nil), criticalPhrases...),
		UrgentPhrases:   append([]string(nil), urgentPhrases...),
		MediumPhrases:   append([]string(nil), mediumPhrases...),
		LightPhrases:    append([]string(nil), lightPhrases...),
		Symptoms:        append([]string(nil), symptomTerms...),
		Conditions:      append([]string(nil), conditionTerms...),
		Treatments:      append([]string(nil), treatmentTerms...),
		WarningPhrases:  append([]string(nil), warningPhrases...),
		SeekHelpLeads:   append([]string(nil), seekHelpLeads...),
		NextSteps:       append([]NextStepRule(nil), nextStepRules...),
		Products:        append([]string(nil), productTerms...),
		ProductCategory: cats,
	}
}

var defaultStopWords = []string{
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can",
	"had", "her", "was", "one", "our", "out", "has", "have", "him", "his",
	"how", "its", "may", "she", "too", "did", "who", "why", "what", "when",
	"where", "which", "while", "with", "would", "could", "should", "will",
	"shall", "this", "that", "these", "those", "there", "their", "they",
	"them", "then", "than", "from", "into", "onto", "about", "above",
	"after", "again", "against", "before", "below", "between", "both",
	"during", "each", "few", "more", "most", "other", "some", "such", "only",
	"own", "same", "very", "just", "also", "been", "being", "were", "does",
	"doing", "done", "here", "over", "under", "until", "upon", "your",
	"yours", "mine", "myself", "yourself", "itself", "ourselves", "because",
	"through", "off", "once", "further", "nor", "now", "get", "got", "let",
	"lot", "really", "much", "many", "like", "well", "even", "still", "yet",
	"ever", "every", "something", "anything", "nothing", "thing", "things",
	"want", "need", "know", "think", "feel", "feeling", "since", "though",
}

var criticalPhrases = []string{
	"call 911", "emergency", "chest pain", "heart attack", "stroke",
	"difficulty breathing", "can't breathe", "cannot breathe", "not breathing",
	"unconscious", "loss of consciousness", "severe bleeding", "seizure",
	"suicidal", "suicide", "overdose", "anaphylaxis", "anaphylactic",
	"coughing up blood", "poisoning",
}

var urgentPhrases = []string{
	"urgent", "immediately", "as soon as possible", "right away",
	"high fever", "severe pain", "worsening", "blood in", "infection",
	"seek medical attention", "within 24 hours", "urgent care",
	"dehydration", "fainting", "confusion",
}

var mediumPhrases = []string{
	"see a doctor", "consult", "schedule an appointment", "make an appointment",
	"persistent", "recurring", "follow up", "follow-up", "chronic",
	"moderate", "several days", "healthcare provider", "get checked",
}

var lightPhrases = []string{
	"mild", "monitor", "rest", "hydrate", "hydration", "over-the-counter",
	"home remedy", "home remedies", "minor", "self-care", "usually resolves",
	"common", "drink plenty of fluids",
}

var symptomTerms = []string{
	"headache", "fever", "cough", "fatigue", "nausea", "vomiting", "dizziness",
	"chest pain", "shortness of breath", "sore throat", "rash", "diarrhea",
	"abdominal pain", "back pain", "joint pain", "insomnia", "anxiety",
	"congestion", "runny nose", "swelling", "itching", "numbness", "chills",
	"muscle ache", "palpitations", "heartburn", "constipation",
}

var conditionTerms = []string{
	"diabetes", "hypertension", "high blood pressure", "asthma", "migraine",
	"arthritis", "depression", "flu", "influenza", "cold", "covid",
	"pneumonia", "bronchitis", "allergy", "allergies", "infection",
	"heart disease", "obesity", "anemia", "eczema", "gerd", "sinusitis",
	"urinary tract infection", "thyroid",
}

var treatmentTerms = []string{
	"ibuprofen", "acetaminophen", "paracetamol", "aspirin", "antibiotic",
	"antihistamine", "rest", "hydration", "ice", "heat", "physical therapy",
	"exercise", "stretching", "inhaler", "insulin", "vaccination", "vaccine",
	"surgery", "counseling", "therapy", "diet", "saline", "decongestant",
}

var warningPhrases = []string{
	"do not", "don't", "avoid", "contraindicat", "should not", "never",
	"warning", "caution", "side effect", "interact", "overdose", "not recommended",
}

var seekHelpLeads = []string{
	"seek immediate medical attention if",
	"seek medical attention if",
	"see a doctor if",
	"call your doctor if",
	"contact your doctor if",
	"contact your healthcare provider if",
	"go to the emergency room if",
	"call 911 if",
	"seek help if",
}

var nextStepRules = []NextStepRule{
	{
		Category: "immediate",
		Keywords: []string{"call 911", "emergency", "immediately", "right away", "emergency room", "urgent care"},
		Action:   "Seek immediate medical care or call emergency services.",
		Priority: "critical",
	},
	{
		Category: "schedule",
		Keywords: []string{"appointment", "see a doctor", "consult", "schedule", "check-up", "checkup", "follow up", "follow-up"},
		Action:   "Schedule an appointment with your healthcare provider.",
		Priority: "high",
	},
	{
		Category: "monitor",
		Keywords: []string{"monitor", "track", "watch for", "keep an eye", "observe", "note any changes"},
		Action:   "Monitor your symptoms and note any changes.",
		Priority: "medium",
	},
	{
		Category: "lifestyle",
		Keywords: []string{"rest", "hydrat", "exercise", "diet", "sleep", "stress", "fluids"},
		Action:   "Adopt supportive lifestyle measures such as rest, hydration and a balanced diet.",
		Priority: "low",
	},
	{
		Category: "medication",
		Keywords: []string{"medication", "medicine", "ibuprofen", "acetaminophen", "dose", "dosage", "prescription", "over-the-counter"},
		Action:   "Review medication guidance with a pharmacist or your doctor before taking anything new.",
		Priority: "medium",
	},
}

// defaultNextStep is emitted when no rule matches.
var defaultNextStep = NextStepRule{
	Category: "monitor",
	Action:   "Continue monitoring your health and reach out if anything changes.",
	Priority: "low",
}

var productTerms = []string{
	"blood pressure monitor", "pulse oximeter", "thermometer", "glucose meter",
	"nebulizer", "humidifier", "heating pad", "ice pack", "compression socks",
	"knee brace", "wrist brace", "first aid kit", "bandage", "ibuprofen",
	"acetaminophen", "antihistamine", "antacid", "saline spray", "nasal spray",
	"eye drops", "cough drops", "throat lozenges", "electrolyte", "oral rehydration",
	"multivitamin", "vitamin d", "vitamin c", "probiotic", "fish oil",
	"sunscreen", "moisturizer", "hydrocortisone cream", "face mask",
	"hand sanitizer", "pill organizer",
}

var defaultProductCategory = map[string]string{
	"blood pressure monitor": "medical_devices",
	"pulse oximeter":         "medical_devices",
	"thermometer":            "medical_devices",
	"glucose meter":          "medical_devices",
	"nebulizer":              "medical_devices",
	"humidifier":             "home_care",
	"heating pad":            "pain_relief",
	"ice pack":               "pain_relief",
	"compression socks":      "support_braces",
	"knee brace":             "support_braces",
	"wrist brace":            "support_braces",
	"first aid kit":          "first_aid",
	"bandage":                "first_aid",
	"ibuprofen":              "medications",
	"acetaminophen":          "medications",
	"antihistamine":          "medications",
	"antacid":                "medications",
	"saline spray":           "respiratory",
	"nasal spray":            "respiratory",
	"eye drops":              "eye_care",
	"cough drops":            "respiratory",
	"throat lozenges":        "respiratory",
	"electrolyte":            "hydration",
	"oral rehydration":       "hydration",
	"multivitamin":           "supplements",
	"vitamin d":              "supplements",
	"vitamin c":              "supplements",
	"probiotic":              "supplements",
	"fish oil":               "supplements",
	"sunscreen":              "skin_care",
	"moisturizer":            "skin_care",
	"hydrocortisone cream":   "skin_care",
	"pill organizer":         "home_care",
}
