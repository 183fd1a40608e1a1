package analysis

const ExtractionSystemPrompt = `You are a contract analysis engine. Read the contract text supplied by the user and extract structured insights.

Respond with a single JSON object and nothing else, using exactly this schema:
{
  "summary": "string, a concise plain-language summary of the contract",
  "parties": [{"name": "string", "role": "string"}],
  "dates": [{"label": "string", "date": "YYYY-MM-DD"}],
  "risks": [{"severity": "low|medium|high", "description": "string"}]
}

Rules:
- Extract only what the text states. Do not invent parties, dates or obligations.
- Every date must be a full calendar date in YYYY-MM-DD form. Omit dates you cannot resolve to a day.
- severity must be one of: low, medium, high.
- Use empty arrays when nothing applies. Never omit a field.`

// SchemaReminder is appended to the user prompt when a previous answer failed
// validation.
const SchemaReminder = `

IMPORTANT: your previous answer did not match the required schema. Return ONLY a JSON object with the keys "summary" (string), "parties" (array of {"name","role"} strings), "dates" (array of {"label","date"} with date as YYYY-MM-DD) and "risks" (array of {"severity","description"} with severity low, medium or high). No prose, no markdown.`

const ChatSystemPrompt = `You answer questions about a single contract. Answer only from the contract text provided by the user. If the text does not contain the answer, say that the answer was not found in the document. Be concise and quote the relevant clause when helpful.`

// TruncationMarker is appended to chat context that exceeded the ceiling.
const TruncationMarker = "\n\n[... document truncated ...]"

// ChatFallbackAnswer is returned when the model answers with no content.
const ChatFallbackAnswer = "I couldn't find an answer to that question in this document."

func buildExtractionPrompt(chunk string, reminder bool) string {
	prompt := "Contract text:\n" + chunk
	if reminder {
		prompt += SchemaReminder
	}
	return prompt
}

func buildChatPrompt(documentText, question string) string {
	return "Contract text:\n" + documentText + "\n\nQuestion: " + question
}
