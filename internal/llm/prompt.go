package llm

// Prompt templates — data only, no logic.

import (
	"fmt"

	"github.com/anatolykoptev/go-kit/strutil"
)

// maxTranscriptChars caps the transcript text sent to either model. Long
// lectures get truncated at a word boundary rather than rejected.
const maxTranscriptChars = 60000

// notesSystemPrompt frames the notes model.
const notesSystemPrompt = `You are an expert at creating concise, high-quality lecture notes from video transcripts.`

// notesPrompt produces structured markdown lecture notes.
// Args: title context (may be empty), transcript.
const notesPrompt = `%sTask: Create structured lecture notes from the following transcript.

Requirements:
1. Executive Summary: 1 short paragraph (3-4 sentences) capturing the main point
2. Key Concepts: 3-5 main topics, each with:
   - Clear heading (## format)
   - 2-3 bullet points explaining the concept
   - Bold important terms
3. Key Takeaways: 3-5 actionable insights as bullet points

Format: Markdown with proper headings, bullets, and bold formatting.

Style:
- Prioritize clarity over completeness
- Use technical terms accurately
- Focus on understanding, not transcription
- Target length: 300-400 words

Transcript:
%s

Output (Markdown format):`

// toolsSystemPrompt frames the extraction model.
const toolsSystemPrompt = `You are an expert at identifying AI tools, frameworks, libraries, models, and platforms mentioned in technical content.`

// toolsPrompt extracts AI tool mentions as JSON.
// Args: title context (may be empty), transcript.
const toolsPrompt = `%sTask: Extract ALL AI-related tools, frameworks, libraries, models, and platforms mentioned in the following transcript.

What to extract:
- AI frameworks (e.g., TensorFlow, PyTorch, LangChain, CrewAI)
- Libraries (e.g., NumPy, Pandas, Transformers)
- Models (e.g., GPT-4, Gemini, Claude, Llama)
- Platforms (e.g., Hugging Face, OpenAI API, AWS SageMaker)
- Services (e.g., Pinecone, Weaviate, Anthropic)

Respond with valid JSON only (no markdown, no ` + "```" + `json block):
{
  "tools": [
    {
      "tool_name": "exact name of the tool",
      "category": "framework" or "library" or "model" or "platform" or "service",
      "context_snippet": "brief quote or paraphrase where it was mentioned (max 100 chars)",
      "timestamp": null,
      "confidence_score": 0.95,
      "usage_context": "how the tool is being used or discussed (1-2 sentences)"
    }
  ]
}

Rules:
- Only extract tools that are CLEARLY mentioned
- confidence_score: 0.9-1.0 for explicit mentions, 0.5-0.8 for implicit
- Return {"tools": []} if no AI tools are mentioned
- Be precise with names (e.g., "GPT-4" not "GPT", "LangChain" not "Langchain")
- Do NOT invent tools not present in the transcript

Transcript:
%s`

// titleContext renders the optional video-title preamble.
func titleContext(title string) string {
	if title == "" {
		return ""
	}
	return fmt.Sprintf("Video Title: %s\n\n", title)
}

func buildNotesPrompt(transcript, title string) string {
	return fmt.Sprintf(notesPrompt, titleContext(title), clipTranscript(transcript))
}

func buildToolsPrompt(transcript, title string) string {
	return fmt.Sprintf(toolsPrompt, titleContext(title), clipTranscript(transcript))
}

func clipTranscript(s string) string {
	return strutil.TruncateAtWord(s, maxTranscriptChars)
}
