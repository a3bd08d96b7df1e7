package advisors

import "fmt"

const classificationTemplate = `
I need to identify which advisor persona would be best suited to answer this question:

"%s"

Please analyze the repository structure and suggest either:
1. An existing file in the repository that contains a suitable advisor persona, or
2. A new file path and name for creating a persona that would be appropriate for this question.

Your response should be in JSON format:
{
  "thinking": "string", // Briefly consider what type of advisor is appropriate, and then consider files in the repo that might contain a suitable persona
  "persona_type": "string", // A short name for the type of advisor (e.g., "legal", "security", "performance")
  "suggested_file": "string or null" // Path to an existing file if found, or a suggested file if none already exists
}

Only return valid JSON that can be parsed. Include new lines and tabs so it will be pretty to a human, but still parseable. Do not include any other text in your response.
`

const creationTemplate = `
I need to create a detailed advisor persona for a %s expert who will answer questions about code.

The first question this persona will answer is:
"%s"

Please create a detailed description of this persona including:
1. Background and expertise
2. Perspective and approach to problems
3. Key principles they follow
4. Tone and communication style
5. Areas of special focus within their domain

The description should be comprehensive enough to guide consistent advice-giving in the persona's voice. Write your response in markdown (.md) format.
`

const adviceTemplate = `
You are an advisor with the following persona:

%s

Please answer this question from the perspective of your persona:

%s

Provide a thoughtful, detailed response that reflects your expertise and perspective as described in your persona.
`

const adviceAck = "I've provided advice based on the requested persona."

func classificationPrompt(question, known string) string {
	prompt := fmt.Sprintf(classificationTemplate, question)
	if known != "" {
		prompt += "\nPersona files already in the repository:\n\n" + known
	}
	return prompt
}

func creationPrompt(personaType, question string) string {
	return fmt.Sprintf(creationTemplate, personaType, question)
}

func advicePrompt(content, question string) string {
	return fmt.Sprintf(adviceTemplate, content, question)
}

func adviceRecord(personaType, advice string) string {
	return fmt.Sprintf("Advice from %s advisor persona:\n\n%s", personaType, advice)
}
