package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Export formats accepted by Export.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Export produces a read-only projection of the session: a structured JSON
// snapshot or a human-readable markdown transcript. It never mutates session
// state, so exporting twice without an intervening turn yields identical
// output.
func (s *Session) Export(format string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch format {
	case FormatJSON:
		return json.MarshalIndent(struct {
			Session  Snapshot  `json:"session"`
			Messages []Message `json:"messages"`
		}{
			Session:  s.snapshotLocked(),
			Messages: s.history.Messages(),
		}, "", "  ")
	case FormatMarkdown:
		return s.exportMarkdownLocked(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExportFormat, format)
	}
}

func (s *Session) exportMarkdownLocked() []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Session %s\n\n", s.id)
	fmt.Fprintf(&b, "**Created**: %s\n", s.createdAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(&b, "**Strategy**: %s\n", s.strategyName)
	fmt.Fprintf(&b, "**Total Tokens**: %d\n", s.totalTokens)
	fmt.Fprintf(&b, "**Total Cost**: $%.4f\n\n", s.totalCost)

	b.WriteString("## Backends\n\n")
	for _, cfg := range s.configs {
		role := cfg.Role
		if role == "" {
			role = "general"
		}
		fmt.Fprintf(&b, "- **%s**: %s/%s (%s)\n", cfg.ID, cfg.Kind, cfg.ModelName, role)
	}

	b.WriteString("\n## Conversation\n\n")
	for _, msg := range s.history.messages {
		if msg.Role == "user" {
			b.WriteString("### User\n")
			b.WriteString(msg.Content + "\n")
		} else {
			name := msg.BackendID
			if name == "" {
				name = "assistant"
			}
			fmt.Fprintf(&b, "### %s\n", name)
			b.WriteString(msg.Content + "\n")
			var meta []string
			if msg.Tokens > 0 {
				meta = append(meta, fmt.Sprintf("Tokens: %d", msg.Tokens))
			}
			if msg.Cost > 0 {
				meta = append(meta, fmt.Sprintf("Cost: $%.4f", msg.Cost))
			}
			if len(meta) > 0 {
				fmt.Fprintf(&b, "*%s*\n", strings.Join(meta, ", "))
			}
		}
		b.WriteString("\n")
	}

	return []byte(b.String())
}
