package mcpserver

// LinkFormatContract describes how vault links are written and how the
// exporter rewrites them, for LLM consumers editing or diagnosing a vault.
const LinkFormatContract = `# Vault Link Format

Notes reference each other and their assets with two link syntaxes.

## Syntaxes

` + "```" + `markdown
[[path]]                 wikilink
[[path#anchor]]          wikilink to a heading
[[path|alias]]           wikilink with display text
[[path#anchor|alias]]    both
![[image.png|300]]       embedded image, 300 pixels wide
[alias](path)            inline link
[alias](path#anchor)     inline link to a heading
` + "```" + `

A path containing "://" is external and is never resolved. Inline links whose
path contains "/" (other folders, URLs) are not recognised and stay as written;
use wikilinks to reach notes in other folders.

## Resolution

The vault setting ` + "`newLinkFormat`" + ` in ` + "`.obsidian/app.json`" + ` decides how a path is read:

- **absolute**: relative to the vault root.
- **relative**: relative to the directory of the note containing the link.
- **shortest** (the default): a bare file name is looked up anywhere in the vault;
  a path containing "/" is read as absolute.

A path without extension resolves to ` + "`path.md`" + ` first, then ` + "`path`" + ` as written.
Inline links may percent-encode spaces (` + "`my%20note.md`" + `).

## Export

Every reachable link is rewritten to ` + "`[alias](relative/path.md#anchor)`" + `, with the path relative
to the exported note. Without an alias the original path (minus ` + "`.md`" + `) is shown.
Image links with a numeric alias become ` + "`[image.png](image.png){width=\"300\"}`" + `.

Links whose target does not exist are kept with the alias ` + "`<path> -file not found-`" + `;
use the ` + "`broken_links`" + ` tool to list them.
`
