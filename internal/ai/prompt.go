package ai

import "fmt"

// buildRefinePrompt builds the system and user prompts for transcript
// refinement.
func buildRefinePrompt(transcript string) (string, string) {
	systemPrompt := `You are a transcript editor for Malsori.
You receive raw speech-to-text output and return a cleaned version.
Fix punctuation, casing, and obvious recognition errors.
Remove filler words and false starts.
Do NOT add information that is not in the transcript.
Do NOT summarize or shorten the content beyond removing fillers.
Keep the original language of the transcript.
Return only the cleaned transcript text, nothing else.`

	userPrompt := fmt.Sprintf(`Transcript:
"""
%s
"""

Return the cleaned transcript.`, transcript)

	return systemPrompt, userPrompt
}
