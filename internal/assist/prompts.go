package assist

import (
	"fmt"
	"strings"

	"github.com/starford/playbooksync/internal/models"
)

// maxDocumentChars bounds the document text placed into a prompt.
const maxDocumentChars = 24000

const classifySystem = `You maintain a library of sales and marketing playbooks.
You are given one captured knowledge entry and the playbook it is most similar to.
Decide how the entry relates to the playbook:
- "enrich": the entry adds new, useful information that belongs in this playbook.
- "redundant": the playbook already says this.
- "tangential": related, but it does not belong in this playbook.
When the action is "enrich", name the existing section heading the entry belongs under.
Reply with one JSON object and nothing else:
{"action": "enrich|redundant|tangential", "rationale": "<one sentence>", "target_section": "<heading or empty>"}`

const editSystem = `You edit sales and marketing playbooks.
You are given a playbook, the section to extend and knowledge entries to fold in.
Write one coherent Markdown block that integrates every entry. Do not repeat what the
playbook already says. Choose an anchor: a short line copied verbatim from the playbook
(usually the section heading or the last line of the section) after which the block is inserted.
Reply with one JSON object and nothing else:
{"anchor": "<verbatim line>", "new_content": "<markdown block>", "summary": "<one line for the commit log>"}`

const clusterSystem = `You organise captured knowledge into playbooks.
You are given knowledge entries that did not fit any existing playbook, and the known modules.
Group entries that share one theme into clusters that each deserve a playbook of their own.
Prefer a known module id; propose a new kebab-case module id only when none fits.
Leave out entries that do not fit any group. An entry belongs to at most one cluster.
Reply with one JSON object and nothing else:
{"clusters": [{"title": "<playbook title>", "module": "<module id>", "entry_ids": ["<id>", ...]}]}`

const draftSystem = `You write new sales and marketing playbooks from captured knowledge.
Follow this contract exactly:

` + DocumentContract + `
Reply with one JSON object and nothing else:
{"path": "<module>/<slug>.md", "title": "<title>", "module": "<module id>", "content": "<full markdown file>", "index_entry": "<module>/<slug>"}`

func formatEntries(entries []models.KnowledgeEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] (%s) %s\n", e.ID, e.Category, oneLine(e.Content))
		if e.Context != "" {
			fmt.Fprintf(&b, "  Context: %s\n", oneLine(e.Context))
		}
		if len(e.Tags) > 0 {
			fmt.Fprintf(&b, "  Tags: %s\n", strings.Join(e.Tags, ", "))
		}
	}
	return b.String()
}

func formatDocument(title, text string) string {
	if r := []rune(text); len(r) > maxDocumentChars {
		text = string(r[:maxDocumentChars]) + "\n[truncated]"
	}
	return fmt.Sprintf("Playbook title: %s\n\n<playbook>\n%s\n</playbook>\n", title, text)
}

func classifyPrompt(entry models.KnowledgeEntry, docText, docTitle string) string {
	return formatDocument(docTitle, docText) + "\nKnowledge entry:\n" + formatEntries([]models.KnowledgeEntry{entry})
}

func editPrompt(entries []models.KnowledgeEntry, docText, docTitle, section string) string {
	if section == "" {
		section = "(choose the best section)"
	}
	return formatDocument(docTitle, docText) +
		"\nSection to extend: " + section +
		"\n\nKnowledge entries:\n" + formatEntries(entries)
}

func clusterPrompt(entries []models.KnowledgeEntry, modules []models.Module) string {
	var b strings.Builder
	b.WriteString("Known modules:\n")
	for _, m := range modules {
		fmt.Fprintf(&b, "- %s (%s)\n", m.ID, m.Label)
	}
	b.WriteString("\nOrphaned knowledge entries:\n")
	b.WriteString(formatEntries(entries))
	return b.String()
}

func draftPrompt(cluster models.OrphanCluster, knownIDs []string, seed int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Playbook title: %s\nModule: %s\n\n", cluster.Title, cluster.Module)
	b.WriteString("Existing document ids (do not reuse any of them):\n")
	for _, id := range knownIDs {
		fmt.Fprintf(&b, "- %s\n", id)
	}
	fmt.Fprintf(&b, "\nIf the natural slug is taken, suffix it with -%d.\n", seed)
	b.WriteString("\nKnowledge entries to cover:\n")
	b.WriteString(formatEntries(cluster.Entries))
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
