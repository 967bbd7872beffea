package analysis

import "strings"

const promptTemplate = `Please analyze this speech transcript and provide feedback:

"""
{{TRANSCRIPT}}
"""

Analyze the transcript for:
1. Filler words (um, uh, like, you know, etc.) - count each one
2. Speaking pace in words per minute (calculate based on word count)
3. Grammar issues with specific text segments and suggested improvements
4. Overall confidence level on a scale of 0-100
5. Body language assessment (if any visual cues are mentioned)
6. Overall score on a scale of 0-100
7. Detailed feedback paragraph

Return ONLY a JSON object with this exact structure:
{
  "fillerWordCount": number,
  "fillerWords": [{"word": string, "count": number}],
  "paceWpm": number,
  "paceRating": "Slow" | "Good" | "Fast",
  "grammarIssues": [{"text": string, "suggestion": string, "position": [number, number]}],
  "confidenceScore": number,
  "bodyLanguage": {
    "posture": number,
    "gestures": number,
    "eyeContact": number
  },
  "overallScore": number,
  "feedback": string
}

Notes:
- For paceRating, use "Slow" for < 110 wpm, "Good" for 110-150 wpm, and "Fast" for > 150 wpm
- If no body language cues are mentioned, estimate reasonable scores around 70-80
- If grammar is perfect, return an empty array for grammarIssues
- Make the feedback actionable and specific
- Be encouraging but honest in your assessment
`

// BuildPrompt returns the coaching prompt for transcript.
func BuildPrompt(transcript string) string {
	return strings.Replace(promptTemplate, "{{TRANSCRIPT}}", strings.TrimSpace(transcript), 1)
}
