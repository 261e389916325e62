package llm

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a precise, literal translator and summarizer. " +
	"Do not add information, do not infer, and avoid paraphrasing unless asked. " +
	"Return only the requested formats."

// SummaryUnavailable is returned by Summarize when there is nothing to summarize
const SummaryUnavailable = "Summary unavailable (no usable content)."

var languageNames = map[string]string{
	"fr": "French",
	"en": "English",
	"de": "German",
	"es": "Spanish",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
}

// LanguageName maps an ISO 639-1 code onto an English language name
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	if code == "" {
		return "French"
	}
	return code
}

func translatePrompt(lang, text string) string {
	return fmt.Sprintf("Translate the following text into **%s**.\n"+
		"- Answer ONLY in %s.\n"+
		"- Give no explanation.\n"+
		"- Do not mix in other languages.\n\n"+
		"Source text:\n%s", lang, lang, text)
}

func summaryPrompt(lang, transcript string) string {
	return fmt.Sprintf("Your role: write a clear, structured and concise report of a meeting.\n"+
		"- The report must be ONLY in %s.\n"+
		"- Do not copy sentences from the source word for word.\n"+
		"- Use 3 to 6 paragraphs, no bullet lists.\n"+
		"- Cover the context of the meeting, the main themes, the key points, "+
		"the important decisions and the follow-up actions.\n"+
		"- Ignore repetitions, hesitations and filler.\n\n"+
		"Transcript to analyze:\n%s", lang, transcript)
}

func summaryUpdatePrompt(lang, current, raw, translated string) string {
	return fmt.Sprintf("Summary of the meeting so far (in %s):\n%s\n\n"+
		"New content (raw text):\n%s\n\n"+
		"New content (%s translation):\n%s\n\n"+
		"Update the meeting summary, clearly and concisely, ONLY in %s, "+
		"keeping only the important information.", lang, current, raw, lang, translated, lang)
}

func answerPrompt(lang, meetingContext, question string) string {
	return fmt.Sprintf("%s\n\nUser question: %s\nAnswer clearly and briefly in %s.", meetingContext, question, lang)
}
