// Package messages assembles the ordered message list handed to a
// provider: system prompt, conversation history, then the rendered user
// prompt.
package messages

import "github.com/xraph/streamobject/provider"

// Build constructs the message list in order: system (if non-empty),
// history, user (if non-empty). Adjacent plain-text messages sharing a
// role are folded into one, since a caller-supplied system prompt and a
// history entry (or the rendered user prompt) landing back-to-back under
// the same role is something several providers reject outright.
func Build(systemPrompt string, history []provider.Message, userPrompt string) []provider.Message {
	messages := make([]provider.Message, 0, len(history)+2)

	if systemPrompt != "" {
		messages = appendMerging(messages, provider.Message{Role: provider.RoleSystem, Text: systemPrompt})
	}

	for _, m := range history {
		messages = appendMerging(messages, m)
	}

	if userPrompt != "" {
		messages = appendMerging(messages, provider.Message{Role: provider.RoleUser, Text: userPrompt})
	}

	return messages
}

// appendMerging appends msg, folding it into the previous entry when both
// are plain-text messages (no Parts) from the same role.
func appendMerging(messages []provider.Message, msg provider.Message) []provider.Message {
	if n := len(messages); n > 0 {
		last := &messages[n-1]
		if last.Role == msg.Role && len(last.Parts) == 0 && len(msg.Parts) == 0 {
			last.Text = last.Text + "\n\n" + msg.Text
			return messages
		}
	}
	return append(messages, msg)
}
