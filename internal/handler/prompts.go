package handler

import (
	"fmt"
	"strings"

	"github.com/glintworks/whatskb/internal/store"
)

const topicSeparator = "\n---\n"

// noDocsFound is substituted for the topic list when retrieval comes back
// empty, so the generator acknowledges the gap instead of fabricating.
const noDocsFound = "No related documentation found in our knowledge base. I can help connect you with additional resources."

func RephraseSystemPrompt(company string) string {
	return fmt.Sprintf(`Rephrase the following user message as a clear, concise search query for finding relevant %s company documentation.
- Use English only!
- Focus on the core question or information need from the user
- Convert conversational language into a structured query suitable for knowledge base search
- Use the chat history for context if relevant, but focus on the main query
- Return only the rephrased search query, no additional text!`, company)
}

func GenerationSystemPrompt(company string) string {
	return fmt.Sprintf(`You are a helpful and knowledgeable representative of %[1]s.
Your role is to assist employees with questions about how to use the %[1]s platform and provide information about the company and its services.

Key guidelines:
- Be professional, friendly, and helpful
- Use the provided company documentation (Related Topics) to answer questions accurately
- If you don't have specific information in the documentation, acknowledge this and offer to help connect them with the right resources
- Keep responses clear, concise, and practical
- Answer in the same language as the user's query
- If the recent chat history provides useful context, incorporate it naturally
- Provide step-by-step guidance when explaining platform features or processes

Remember: You represent %[1]s, so maintain a professional tone while being approachable and helpful.`, company)
}

func buildRephrasePrompt(text string, history []store.Message) string {
	return fmt.Sprintf("%s\n\n## Recent chat history:\n%s", text, chatTranscript(history))
}

// buildGenerationPrompt carries the user's original question, never the
// rephrased search query; the generator answers in the question's language.
func buildGenerationPrompt(question string, history []store.Message, topics []string) string {
	docs := noDocsFound
	if len(topics) > 0 {
		docs = strings.Join(topics, topicSeparator)
	}
	return fmt.Sprintf(`User Query: %s

# Recent chat history:
%s

# Company Documentation (Related Topics):
%s`, question, chatTranscript(history), docs)
}

// chatTranscript renders history for prompts. History arrives newest-first
// (the store contract) and is reversed here once, so prompts always read
// chronologically.
func chatTranscript(history []store.Message) string {
	if len(history) == 0 {
		return "(no prior messages)"
	}

	var sb strings.Builder
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		name := m.PushName
		if name == "" {
			name = m.SenderJID
		}
		fmt.Fprintf(&sb, "%s: %s\n", name, m.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}
