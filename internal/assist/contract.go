package assist

// DocumentContract describes the Markdown structure every playbook follows.
// It is embedded in the drafting prompt and served to MCP clients.
const DocumentContract = `# Playbook Document Contract

Every playbook is a Markdown file stored at ` + "`<module>/<slug>.md`" + `.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # REQUIRED, shown in the sidebar
module: email-module                # REQUIRED, the owning module id
---

# Human-readable title

One short paragraph stating what the playbook is for.

## Section heading

Steps, guidance and examples as Markdown lists or paragraphs.
` + "```" + `

## Rules

1. **Frontmatter is mandatory.** The ` + "`---`" + ` fences come first in the file.
2. **` + "`title`" + ` and ` + "`module`" + ` are required.** The module matches the first path segment.
3. **One H1** equal to the title, then H2 sections. Section names are stable anchors
   that later edits are inserted after, so do not rename them casually.
4. **File names** are lowercase kebab-case, ASCII, ending in ` + "`.md`" + `.
5. **Encoding** is UTF-8 with a trailing newline.
6. **No HTML**; prefer Markdown equivalents.
7. **Facts come from captured knowledge.** Do not invent metrics, names or quotes.
`
