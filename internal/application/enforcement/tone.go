package enforcement

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
)

// Tone selects the register of an enforcement message.
type Tone string

const (
	ToneFriendly Tone = "friendly"
	ToneFormal   Tone = "formal"
	ToneVibe     Tone = "vibe"
)

// Tones lists every supported tone.
var Tones = []Tone{ToneFriendly, ToneFormal, ToneVibe}

// ParseTone returns the tone named by s (case-insensitive) and whether it
// was recognised.
func ParseTone(s string) (Tone, bool) {
	switch Tone(strings.ToLower(strings.TrimSpace(s))) {
	case ToneFriendly:
		return ToneFriendly, true
	case ToneFormal:
		return ToneFormal, true
	case ToneVibe:
		return ToneVibe, true
	}
	return "", false
}

// messageData feeds both the prompt and the fallback templates.
type messageData struct {
	Name        string
	Description string
	IPID        string
	Platform    string
	URL         string
	Similarity  string
	Engagement  int64
	ExplorerURL string
	Instruction string
}

func newMessageData(a *asset.IPAsset, v asset.ViolationRecord, explorerBase string, tone Tone) messageData {
	return messageData{
		Name:        a.Name,
		Description: a.Description,
		IPID:        a.ID,
		Platform:    v.Platform,
		URL:         v.URL,
		Similarity:  fmt.Sprintf("%.1f%%", v.Similarity*100),
		Engagement:  v.Engagement,
		ExplorerURL: strings.TrimRight(explorerBase, "/") + "/" + a.ID,
		Instruction: toneInstructions[tone],
	}
}

const systemPrompt = "You are IP Whisperer, a friendly assistant that helps creators protect their " +
	"intellectual property. Write concise, helpful messages that encourage collaboration over conflict."

var toneInstructions = map[Tone]string{
	ToneFriendly: "Be friendly, professional and descriptive, encouraging collaboration.",
	ToneFormal:   "Use strictly professional, formal language. Be descriptive about the IP details.",
	ToneVibe:     "Use casual internet slang and emojis, keep it fun but clear about the IP claim.",
}

var promptTemplate = template.Must(template.New("prompt").Parse(
	`Write a direct message to someone who used registered content without permission.

Original IP asset:
- Name: {{.Name}}
- Description: {{.Description}}
- Registered IP ID: {{.IPID}}

Violation:
- Platform: {{.Platform}}
- Post URL: {{.URL}}
- Similarity: {{.Similarity}}
- Engagement: {{.Engagement}} interactions

Tone: {{.Instruction}}

Greet them, acknowledge their content, state that it uses registered IP (name and ID),
offer to license it officially or set up a royalty split, link the registration at
{{.ExplorerURL}}, stay under 250 words and sign off as IP Whisperer.`))

var templates = map[Tone]*template.Template{
	ToneFriendly: template.Must(template.New("friendly").Parse(
		`Hi there!

I came across your post at {{.URL}} and really enjoyed it.

It builds on "{{.Name}}", which is registered intellectual property (IP ID: {{.IPID}}, {{.Similarity}} match). No hard feelings, this happens all the time!

If you'd like to keep using it, we can set up a license or a royalty split. Details are here:
{{.ExplorerURL}}

Looking forward to working this out together.

IP Whisperer`)),
	ToneFormal: template.Must(template.New("formal").Parse(
		`Dear Content Creator,

I recently came across your post at {{.URL}} and wanted to acknowledge the quality of your content.

However, this content makes use of "{{.Name}}", which is formally registered intellectual property (IP ID: {{.IPID}}). Our analysis shows a {{.Similarity}} match.

To resolve this matter amicably, we invite you to:
- Obtain an official license
- Arrange a royalty split
- Provide proper attribution

The registered IP details are available at:
{{.ExplorerURL}}

We look forward to a positive resolution.

Sincerely,
IP Whisperer`)),
	ToneVibe: template.Must(template.New("vibe").Parse(
		`yo! 👋

saw your post ({{.URL}}) and it's actually fire 🔥

heads up tho, that's registered IP (ID: {{.IPID}}, {{.Similarity}} match). no drama!

wanna make it legit? license it or split royalties:
{{.ExplorerURL}}

let's collab instead of beef 🤝

- IP Whisperer`)),
}

func render(t *template.Template, data messageData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// TemplateMessage renders the fixed message used when generation fails.
func TemplateMessage(a *asset.IPAsset, v asset.ViolationRecord, tone Tone, explorerBase string) (string, error) {
	t, ok := templates[tone]
	if !ok {
		t = templates[ToneFriendly]
	}
	return render(t, newMessageData(a, v, explorerBase, tone))
}

// Prompt renders the generation prompt for a violation.
func Prompt(a *asset.IPAsset, v asset.ViolationRecord, tone Tone, explorerBase string) (string, error) {
	return render(promptTemplate, newMessageData(a, v, explorerBase, tone))
}
