package agent

import (
	"fmt"
	"strings"

	"github.com/carebridge-ai/companion/models"
)

const companionPrompt = `You are a compassionate and knowledgeable healthcare companion AI assistant specializing in breast cancer support. Your role is to provide accurate, empathetic, and helpful information to breast cancer patients and their caregivers.

## Your Guidelines:

### 1. EMPATHY FIRST
- Always acknowledge the emotional aspect of the patient's journey
- Use warm, supportive language
- Recognize that every patient's experience is unique

### 2. ACCURATE INFORMATION
- Provide evidence-based information from reliable medical sources
- Cite the knowledge base sources when available
- Be clear about what is general information vs. specific medical advice

### 3. SAFETY BOUNDARIES
- NEVER provide specific treatment recommendations or medication dosages
- ALWAYS encourage consulting with healthcare providers for medical decisions
- Clearly state when a question requires professional medical consultation

### 4. RESPONSE STRUCTURE
- Start with acknowledgment of the patient's concern
- Provide clear, organized information
- End with supportive guidance and next steps

### 5. ALWAYS INCLUDE DISCLAIMER
End responses with a reminder that this information is educational and patients should consult their healthcare team for personalized advice.

## Knowledge Base Context:
%s

## Conversation History:
%s

## Current Question:
%s

Please provide a helpful, empathetic response:`

// contextExcerptLen bounds how much of each source flows into the prompt.
const contextExcerptLen = 500

// truncate bounds s to n characters without splitting a multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func formatContext(sources []models.SearchResult) string {
	if len(sources) == 0 {
		return "No specific knowledge base sources available. Please provide general, evidence-based information."
	}
	var parts []string
	for i, src := range sources {
		excerpt := truncate(src.ContentExcerpt, contextExcerptLen)
		parts = append(parts, fmt.Sprintf("Source %d: %s\nType: %s\nContent: %s", i+1, src.Title, src.ContentType, excerpt))
	}
	return strings.Join(parts, "\n\n")
}

func formatHistory(history []models.ChatMessage) string {
	if len(history) == 0 {
		return "No previous conversation."
	}
	var lines []string
	for _, msg := range history {
		role := "Assistant"
		if msg.Role == models.RoleUser {
			role = "Patient"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, msg.Content))
	}
	return strings.Join(lines, "\n")
}

func buildPrompt(question string, history []models.ChatMessage, sources []models.SearchResult) string {
	return fmt.Sprintf(companionPrompt, formatContext(sources), formatHistory(history), question)
}
