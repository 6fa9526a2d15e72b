package mcpserver

// DiaryFormatContract describes the Markdown diary format that LLM
// consumers should follow when reading or writing diary text.
const DiaryFormatContract = `# inkday Diary Format

The diary is one UTF-8 Markdown document. It is read line by line; lines
that match none of the rules below are ignored.

## Structure

` + "```" + `markdown
<!-- lastSavedTimestamp: 1700000000000 -->

# 2024
## March 2024
3/14/2024
  - Pick up dry cleaning
  - Finish report [✓] #work #urgent
` + "```" + `

## Rules

1. **Metadata** lines look like ` + "`" + `<!-- key: value -->` + "`" + `. The
   ` + "`" + `lastSavedTimestamp` + "`" + ` key holds milliseconds since the Unix epoch.
2. **Headers** (` + "`" + `# 2024` + "`" + `, ` + "`" + `## March 2024` + "`" + `) are for humans and ignored on import.
3. **Date lines** are ` + "`" + `M/D/YYYY` + "`" + ` with no zero padding, alone on the line.
   Every event belongs to the nearest date line above it.
4. **Events** are bullets (` + "`" + `-` + "`" + ` or ` + "`" + `*` + "`" + `) under a date line, one per line.
5. **Completed** events end with ` + "`" + `[✓]` + "`" + ` before their tags.
6. **Tags** are trailing ` + "`" + `#word` + "`" + ` tokens (letters, digits, ` + "`" + `_` + "`" + `, ` + "`" + `-` + "`" + `). A ` + "`" + `#` + "`" + ` in the
   middle of the text stays part of the text.
7. Days without events are dropped. Event IDs are never written.

## Example

` + "```" + `markdown
<!-- lastSavedTimestamp: 1712345678901 -->

# 2024
## April 2024
4/5/2024
  - Dentist at 9 #health
  - Ship release [✓] #work
` + "```" + `
`
