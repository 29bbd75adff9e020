package session

// Step is a position in the registration intake flow.
type Step string

const (
	StepAwaitingName         Step = "awaiting_name"
	StepAwaitingDescription  Step = "awaiting_description"
	StepAwaitingCategory     Step = "awaiting_category"
	StepAwaitingCreator      Step = "awaiting_creator"
	StepAwaitingMedia        Step = "awaiting_media"
	StepAwaitingTags         Step = "awaiting_tags"
	StepAwaitingLicense      Step = "awaiting_license"
	StepAwaitingConfirmation Step = "awaiting_confirmation"

	// Terminal steps. A session never rests in one; they only appear in
	// a Result.
	StepRegistered Step = "registered"
	StepCancelled  Step = "cancelled"
)

var order = []Step{
	StepAwaitingName,
	StepAwaitingDescription,
	StepAwaitingCategory,
	StepAwaitingCreator,
	StepAwaitingMedia,
	StepAwaitingTags,
	StepAwaitingLicense,
	StepAwaitingConfirmation,
}

// Next returns the step after s. The confirmation step and terminal steps
// have no successor and return themselves.
func (s Step) Next() Step {
	for i, step := range order {
		if step == s && i+1 < len(order) {
			return order[i+1]
		}
	}
	return s
}

// Terminal reports whether the step ends a session.
func (s Step) Terminal() bool {
	return s == StepRegistered || s == StepCancelled
}

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
	if s.Terminal() {
		return true
	}
	for _, step := range order {
		if step == s {
			return true
		}
	}
	return false
}

var prompts = map[Step]string{
	StepAwaitingName: "What's the name of your creative work?",
	StepAwaitingDescription: "Great! Now provide a detailed description of your IP.\n\n" +
		"(Include what makes it unique, key features, etc.)",
	StepAwaitingCategory: "What category does this IP belong to?\n\n" +
		"Examples: Music, Art/Design, Video/Film, Software/Code, Writing/Text, Photography, 3D Model, Other",
	StepAwaitingCreator: "Creator information: enter the creator name or wallet address.\n\n" +
		"(This will be registered as the IP owner)",
	StepAwaitingMedia: "Media URL (optional): provide a direct link to your image, " +
		"e.g. https://i.imgur.com/example.jpg\n\nOr type \"skip\" to use a default placeholder.",
	StepAwaitingTags: "Tags/Keywords (optional): enter keywords separated by commas, " +
		"e.g. \"electronic, remix, synthwave\"\n\nOr type \"skip\" to skip.",
	StepAwaitingLicense: "License type:\n\n" +
		"1. Commercial Use Allowed\n2. Non-Commercial Only\n3. No Derivatives\n4. Custom Terms\n\n" +
		"Enter 1, 2, 3, or 4.",
	StepAwaitingConfirmation: `Please type "confirm" to proceed or "cancel" to start over.`,
	StepCancelled:            "Registration cancelled. Use /protect to start again.",
}

// Prompt returns the question asked when a session enters s.
func Prompt(s Step) string {
	return prompts[s]
}
