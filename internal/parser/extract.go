package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/raphaelgruber/logseq-rag/internal/models"
)

// breakingChars end a reference.
const breakingChars = "?!:'\""

// anchorRegex matches a block property binding a UUID to the block.
// ((uuid)) embeds carry no id:: marker and are not matched.
var anchorRegex = regexp.MustCompile(`id::\s+([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})`)

// ExtractReferences returns one tag per token that contains '#', in token order.
//
// The tag is the text after the run of '#' characters, with backslashes
// removed, cut at the first breaking character and stripped of trailing '#'.
// Tokens that reduce to nothing (a bare "##" heading marker) are skipped.
func ExtractReferences(tokens []string) []string {
	refs := []string{}
	for _, tok := range tokens {
		i := strings.IndexByte(tok, '#')
		if i < 0 {
			continue
		}

		ref := strings.TrimLeft(tok[i:], "#")
		ref = strings.ReplaceAll(ref, `\`, "")
		if j := strings.IndexAny(ref, breakingChars); j >= 0 {
			ref = ref[:j]
		}
		ref = strings.TrimRight(ref, "#")

		if ref == "" {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// ExtractAnchorIDs returns the UUIDs bound with "id:: <uuid>", in order of appearance.
func ExtractAnchorIDs(text string) []string {
	ids := []string{}
	for _, m := range anchorRegex.FindAllStringSubmatch(text, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

// ExtractChunkMetadata computes the derived metadata of one chunk.
func ExtractChunkMetadata(content string) models.ChunkMetadata {
	words := strings.Fields(content)
	return models.ChunkMetadata{
		ChunkLen:   utf8.RuneCountInString(content),
		WordCount:  len(words),
		References: ExtractReferences(words),
		AnchorIDs:  ExtractAnchorIDs(content),
	}
}
