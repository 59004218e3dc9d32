package core

// knowledge.go holds the static healthcare knowledge that is matched against
// request keywords and folded into the context bundle.

// topicTaxonomy groups known terms by category.  A keyword contributes to a
// category when it equals one of the category's terms.
var topicTaxonomy = map[string][]string{
	"symptoms": {
		"headache", "fever", "cough", "fatigue", "nausea", "vomiting", "dizziness",
		"pain", "rash", "diarrhea", "insomnia", "anxiety", "congestion", "swelling",
		"itching", "numbness", "chills", "palpitations", "heartburn", "chest",
		"breathing", "throat", "stomach", "hurts", "ache", "sore",
	},
	"conditions": {
		"diabetes", "hypertension", "asthma", "migraine", "arthritis", "depression",
		"flu", "influenza", "cold", "covid", "pneumonia", "bronchitis", "allergy",
		"allergies", "infection", "obesity", "anemia", "eczema", "gerd", "sinusitis",
		"thyroid", "pressure",
	},
	"treatments": {
		"ibuprofen", "acetaminophen", "paracetamol", "aspirin", "antibiotic",
		"antibiotics", "antihistamine", "medication", "medicine", "inhaler",
		"insulin", "therapy", "surgery", "vaccine", "dose", "dosage", "prescription",
	},
	"prevention": {
		"exercise", "diet", "nutrition", "sleep", "hydration", "water", "vaccination",
		"screening", "checkup", "hygiene", "stress", "smoking", "alcohol", "weight",
	},
}

// topicCategoryOrder fixes the iteration order of topicTaxonomy.
var topicCategoryOrder = []string{"symptoms", "conditions", "treatments", "prevention"}

// conditionAdvisories are canned notes keyed by a single keyword.
var conditionAdvisories = map[string]string{
	"diabetes":     "For diabetes, regular blood glucose monitoring and consistent meal timing help keep levels stable.",
	"hypertension": "For high blood pressure, limiting sodium, staying active and taking prescribed medication consistently are key.",
	"pressure":     "Blood pressure readings are most reliable when taken at the same time each day after a few minutes of rest.",
	"asthma":       "For asthma, keep a rescue inhaler available and avoid known triggers such as smoke and cold air.",
	"migraine":     "For migraines, tracking triggers and resting in a dark, quiet room can reduce severity.",
	"headache":     "Most tension headaches respond to rest, hydration and over-the-counter pain relief.",
	"fever":        "A fever above 39.4°C (103°F), or one lasting more than three days, should be evaluated by a clinician.",
	"cough":        "A cough lasting longer than three weeks warrants a medical review.",
	"pregnancy":    "During pregnancy, check with your obstetric provider before taking any new medication or supplement.",
	"depression":   "Persistent low mood lasting more than two weeks is worth discussing with a healthcare professional.",
	"anxiety":      "Breathing exercises and regular physical activity can reduce everyday anxiety symptoms.",
	"allergy":      "For allergies, identifying and avoiding triggers is the first line of management.",
	"allergies":    "For allergies, identifying and avoiding triggers is the first line of management.",
	"chest":        "Chest pain can signal a heart problem; sudden or severe chest pain needs emergency evaluation.",
}

// safetyGuidelines are always included in the relevant data block.
var safetyGuidelines = []string{
	"This assistant provides general health information, not a diagnosis.",
	"In an emergency, call your local emergency number immediately.",
	"Always consult a qualified healthcare professional before starting, stopping or changing medication.",
	"Do not delay seeking medical care because of information received here.",
}

// statisticalDisclaimer accompanies any statistics the assistant may quote.
var statisticalDisclaimer = []string{
	"Statistics describe populations, not individuals; your own risk may differ.",
	"Figures are approximate and may vary by region, age group and data source.",
	"Consult current clinical guidance for up-to-date numbers.",
}
