package provider

import "fmt"

const extractionTemplate = `Extract the complete content from this X.com post: %s

Include:
- Author name and handle
- Timestamp
- Full post text
- Any thread replies (if part of a thread)
- Media descriptions (if any)

Be precise - fetch content from this exact post URL only.`

// ExtractionPrompt embeds postURL in the extraction instruction
func ExtractionPrompt(postURL string) string {
	return fmt.Sprintf(extractionTemplate, postURL)
}
