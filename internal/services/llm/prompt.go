package llm

import (
	"fmt"
	"strings"
)

// styleGuidance holds the per-style instructions appended to the base
// refinement prompt.
var styleGuidance = map[string]string{
	"piano": `Favor two-voice writing suited to two hands. Split wide leaps between
voices, keep each voice within a playable hand span, and prefer conventional
piano figuration over literal transcription artifacts.`,
	"guitar": `Keep the music within standard guitar range (E2 to B5) and at most six
simultaneous pitches. Prefer idiomatic chord voicings and remove notes a
single guitarist could not fret.`,
	"vocal": `Treat the material as a single melodic line. Remove accompaniment
fragments, keep the melody within a comfortable vocal range, and smooth
unsingable leaps.`,
	"general": `Clean up obvious transcription artifacts: spurious very short notes,
impossible overlaps, and misspelled accidentals. Preserve the musical content
otherwise.`,
}

// RefinementPrompt returns the system prompt for the given style.
// Unrecognized styles fall back to the general guidance.
func RefinementPrompt(style string) string {
	guidance, ok := styleGuidance[strings.ToLower(strings.TrimSpace(style))]
	if !ok {
		guidance = styleGuidance["general"]
	}
	return fmt.Sprintf(`You are a music notation editor. You receive a MusicXML document produced
by automatic pitch transcription and return an improved version.

%s

Respond with JSON only, using this schema:
{"content": "<the complete revised MusicXML document>", "changes": ["<one short description per change>"]}

The content field must be a complete, well-formed score-partwise MusicXML
document. Do not invent new musical material; only clean up what is there.`, guidance)
}

// RefinementUserPrompt wraps the notation content and optional free-text
// instruction into the user message.
func RefinementUserPrompt(content, instruction string) string {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return content
	}
	return fmt.Sprintf("Additional instruction: %s\n\n%s", instruction, content)
}

// KnownStyles lists the refinement styles with dedicated guidance.
func KnownStyles() []string {
	return []string{"piano", "guitar", "vocal", "general"}
}
