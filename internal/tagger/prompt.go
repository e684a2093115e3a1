package tagger

import (
	"encoding/json"
	"fmt"
)

// BuildPrompt embeds the full sorted vocabulary and the strict output-format
// contract into the classification prompt. The vocabulary is the model's only
// permitted tag source; conformance is a prompting concern, not enforced
// downstream.
func BuildPrompt(vocabulary []string) string {
	vocabJSON, err := json.Marshal(vocabulary)
	if err != nil {
		// Unreachable for []string.
		vocabJSON = []byte("[]")
	}

	return fmt.Sprintf(`Analyze the provided architectural image. Your task is to identify all relevant visual features and assign tags ONLY from the official list provided below.

Official Allowed Tags List (JSON Array Format):
%s

Instructions:
1. Examine the image carefully.
2. Identify all architectural features, styles, materials, contexts, etc., that are clearly visible.
3. Select the corresponding tags EXACTLY as they appear in the Official Allowed Tags List above.
4. Respond with ONLY a valid JSON array containing the strings of the selected tags from the official list. Example: ["Concrete", "Window", "Modernist", "Urban", "Daytime"]

Strict Output Requirements:
- Only use tags present in the provided Official Allowed Tags List. Do not invent new tags, use synonyms, or change capitalization/punctuation.
- The output must be ONLY the JSON array.
- Do NOT include any explanations, commentary, confidence scores, or markdown formatting.
- If no tags from the official list apply to the image, return an empty JSON array: [].

Adherence to these rules and the provided tag list is critical.
`, vocabJSON)
}
