package core

// prompts.go defines the prompts and canned replies used by the gateway and
// the pipeline.  Keeping these strings in a separate file makes them easy to
// tweak without touching the rest of the code.

const (
	// SystemPrompt is the default persona.  It can be replaced through
	// configuration.
	SystemPrompt = "You are a friendly, careful healthcare assistant. " +
		"You help people understand symptoms, conditions, treatments and healthy habits in plain language. " +
		"You never give a definitive diagnosis and you never replace a healthcare professional. " +
		"When anything suggests an emergency, tell the user to call their local emergency number right away."

	// ResponseGuidelines asks the model for output the classifier can parse.
	ResponseGuidelines = "Structure every answer as follows: start with a one-sentence summary; " +
		"list the key points as bullet lines starting with '-'; " +
		"state clearly what to avoid; " +
		"finish with when to seek medical attention, phrased as 'Seek medical attention if ...'. " +
		"When a product could help, name it explicitly, for example 'consider using a thermometer'."

	// NotConfiguredMessage is returned when no usable API credential is set.
	NotConfiguredMessage = "I'm sorry, the health assistant is not configured yet, so I can't answer right now. " +
		"Please contact the administrator, and if this is an emergency call your local emergency number."

	// ApologyMessage is persisted as the assistant reply when processing fails.
	ApologyMessage = "I'm sorry, something went wrong while I was preparing your answer. " +
		"Please try again in a moment. If your symptoms are severe, contact a healthcare professional or emergency services."
)

// fallbackMessages are used when the completion provider fails.  They must
// not contain any phrase from the classifier tables, so a fallback never
// raises the urgency of a turn.
var fallbackMessages = []string{
	"I'm having trouble reaching my knowledge base at the moment. Please ask again in a little while.",
	"Sorry, I couldn't finish an answer just now. Could you send your question once more in a minute?",
	"My apologies, I'm temporarily unable to reply in full. Please send your message again shortly.",
	"I wasn't able to process your question just now. Please send it again in a few moments.",
}

// placeholderKeys are credentials copied verbatim from sample config files.
var placeholderKeys = map[string]struct{}{
	"your-api-key":        {},
	"your-api-key-here":   {},
	"your_openai_api_key": {},
	"sk-your-key-here":    {},
	"sk-xxxxxxxx":         {},
	"changeme":            {},
	"replace-me":          {},
	"todo":                {},
	"none":                {},
	"null":                {},
}
