package agent

import (
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/toolreg"
)

const systemPreamble = `You are a research assistant over a personal knowledge base of Markdown notes and ingested documents. Answer the user's question using only information you retrieve through the tools.

Rules:
- Always search before answering. Start with search_notes_by_title, then follow tags, links, and backlinks to gather context.
- Read the full content of a note before quoting or summarizing it.
- Cite the notes and documents you used by title.
- If the knowledge base does not cover the question, say so plainly instead of guessing.
- Tool errors are recoverable: fix the arguments or pick a different tool and continue.`

const wrapUpPrompt = `Stop calling tools. Using only the information already retrieved above, give your best answer to the original question now.`

const truncationNotice = `Note: the search was cut short before it could finish, so this answer may be incomplete.`

// systemPrompt renders the system turn, listing the available tools in
// their registration order so the model sees a stable catalogue.
func systemPrompt(tools []toolreg.Schema) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\nAvailable tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return b.String()
}
