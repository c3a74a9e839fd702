// Package parser splits Logseq journal markdown into chunks and extracts
// per-chunk metadata.
package parser

import "strings"

// BulletBoundary separates top-level bullets in a Logseq page. Nested bullets
// are indented before their hyphen and so never match it.
const BulletBoundary = "\n-"

// Split divides a journal page into its preamble and top-level bullets.
// Every returned chunk is trimmed and non-empty; blank pieces are dropped
// without taking an index. Content without bullets comes back whole.
func Split(content string) []string {
	pieces := strings.Split(content, BulletBoundary)

	chunks := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		chunks = append(chunks, p)
	}
	return chunks
}
