package ai

import (
	"encoding/json"
	"strings"

	"github.com/shojbahmed330/oneclick-studio/models"
)

// SystemPrompt instructs the model to answer with the strict JSON object the
// decoder and result parser expect.
const SystemPrompt = `You are a world-class Full Stack Developer and Architect.
Your goal is to build professional hybrid apps using HTML, CSS, and JS.

### INTELLIGENCE RULES:
1. CLARIFICATION FIRST:
   - If a user request is vague, DO NOT implement immediately. Generate a "questions" array.
   - ADMIN PANEL LOGIC: DO NOT create an Admin Panel by default. Only generate files in the "admin/" directory if:
     a) The user explicitly asks for it.
     b) The app is complex (e.g., requires database management, user moderation, or analytics).
     c) If unsure, ask the user: "Do you need an admin management panel for this app?"

2. TASK FLOW:
   - Once requirements are clear:
   - Step A: Provide a detailed "plan".
   - Step B: Perform a 100% complete implementation of necessary files.
   - Use "app/" for the main mobile interface and "admin/" for management (if required).

3. RESUME & EDIT LOGIC:
   - Always build on top of existing code in "PROJECT MAP".
   - Maintain consistency across workspaces.

### RESPONSE FORMAT (JSON ONLY):
{
  "thought": "Internal reasoning...",
  "questions": [],
  "plan": [],
  "answer": "Summary of actions...",
  "files": { "app/index.html": "...", "admin/index.html": "..." }
}

### DESIGN RULES:
- Use Tailwind CSS.
- Ensure high-end UI/UX. No placeholders.`

// ExecutePhaseMarker flags an auto-continuation step of a plan rather than a
// fresh user turn.
const ExecutePhaseMarker = "EXECUTE PHASE"

// BuildContextPrompt constructs the context for one generation turn: the full
// project map, the JSON-serialized content of the active workspace's files plus
// root-level files, the user directive, and a fixed instruction suffix. A prompt
// carrying the EXECUTE PHASE marker gets a suffix that forbids clarifying
// questions and demands direct implementation.
func BuildContextPrompt(prompt string, files models.ProjectTree, workspace string) string {
	filtered := files.FilterWorkspace(workspace)
	contentJSON, err := json.Marshal(filtered)
	if err != nil {
		contentJSON = []byte("{}")
	}

	var contextBuilder strings.Builder
	contextBuilder.WriteString("PROJECT MAP (FILES IN WORKSPACE):\n")
	contextBuilder.WriteString(strings.Join(files.Paths(), "\n"))
	contextBuilder.WriteString("\n\nCURRENT SOURCE CONTENT:\n")
	contextBuilder.Write(contentJSON)
	contextBuilder.WriteString("\n\nUSER DIRECTIVE: ")
	contextBuilder.WriteString(prompt)
	contextBuilder.WriteString("\n\nINSTRUCTION: ")
	if strings.Contains(prompt, ExecutePhaseMarker) {
		contextBuilder.WriteString("This is an automated execution step of an approved plan. Do NOT ask clarifying questions. Implement the phase directly and completely.")
	} else {
		contextBuilder.WriteString(`Admin panel is optional. Use "questions" to ask if one is needed for simple apps.`)
	}

	return contextBuilder.String()
}
