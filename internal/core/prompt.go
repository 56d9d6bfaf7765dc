package core

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/jibzus/TLJ1/internal/store"
)

// journalPromptPreamble is the fixed instruction handed to the summary
// model ahead of the transcript. Kept verbatim: the output format of every
// stored summary depends on it.
const journalPromptPreamble = "You will be given a conversation between a user and a chatbot. " +
	"Your task is to rewrite this conversation as a first-person journal entry from the user's perspective, " +
	"capturing the essence of their day and the interaction they had with the chatbot. " +
	"Carefully read through the entire conversation to grasp the overall context, key points discussed, and the user's intent. " +
	"Analyze the conversation: Identify the main themes or topics covered during the conversation. " +
	"Note down important information, such as events, tasks, emotions, decisions, and any specific details the user shared. " +
	"Highlight any actions taken or planned as a result of the conversation. " +
	"Write the journal entry: Use a first-person perspective, writing as if you are the user. " +
	"Begin with a brief introduction about the day or the reason for the conversation. " +
	"Ensure that the narrative flows logically from one point to the next. " +
	"Reflect the user's tone and emotions as conveyed in the conversation. " +
	"Include any personal reflections or insights that the user might have shared. " +
	"Mention the interaction with the chatbot naturally, as part of the day's events. " +
	"Conclude with any final thoughts or plans for the future that emerged from the conversation. " +
	"Style and tone: Mimic the user's writing style, vocabulary, and manner of expression as closely as possible. " +
	"Maintain the emotional tone present in the user's messages throughout the journal entry. " +
	"Content: Ensure all salient points from the conversation are included in the journal entry. " +
	"Do not add any new information that wasn't present in the original conversation. " +
	"Take the following conversation as input:"

// BuildSummaryPrompt renders the preamble plus the transcript as
// "sender: text" lines in transcript order. Pure and deterministic; no
// truncation happens here, oversized prompts are the model call's problem.
func BuildSummaryPrompt(transcript []store.Message) string {
	lines := lo.Map(transcript, func(m store.Message, _ int) string {
		return fmt.Sprintf("%s: %s", m.Sender, m.Text)
	})
	return journalPromptPreamble + "\n\n" + strings.Join(lines, "\n")
}
