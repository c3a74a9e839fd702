package parser

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractReferences(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   []string
	}{
		{"plain tags", []string{"this", "is", "#my", "test", "#script"}, []string{"my", "script"}},
		{"trailing hashes", []string{"#lol#", "#tag##", "#ref###"}, []string{"lol", "tag", "ref"}},
		{"leading hash run", []string{"###ref", "##tag"}, []string{"ref", "tag"}},
		{"backslash removed", []string{`#asdf\qwer`}, []string{"asdfqwer"}},
		{"double backslash removed", []string{`#test\\path`}, []string{"testpath"}},
		{
			"breaking characters",
			[]string{"#asdf?qwer", "#test!end", "#name:value", "#quote'break", `#double"quote`},
			[]string{"asdf", "test", "name", "quote", "double"},
		},
		{
			"backslash then break",
			[]string{`#tag\with?break`, `#path\to:file`, `#name'with"quotes`},
			[]string{"tagwith", "pathto", "name"},
		},
		{"apostrophe", []string{"#script'sfatal"}, []string{"script"}},
		{"hyphenated date", []string{"#2025-07-07"}, []string{"2025-07-07"}},
		{"at sign kept", []string{"#feature@v2"}, []string{"feature@v2"}},
		{"duplicates kept", []string{"#work", "x", "#work"}, []string{"work", "work"}},
		{"no tags", []string{"no", "tags", "here"}, []string{}},
		{"bare hashes skipped", []string{"##", "#", "Heading"}, []string{}},
		{"empty input", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractReferences(tt.tokens)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractReferences(%q) = %q, want %q", tt.tokens, got, tt.want)
			}
		})
	}
}

func TestExtractAnchorIDs(t *testing.T) {
	const id = "686f4ac0-e43b-4a15-940a-954f55e03bea"
	const other = "1a2b3c4d-0000-4000-8000-123456789abc"

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"property", "Some block\n  id:: " + id, []string{id}},
		{"embed only", "See ((" + id + "))", []string{}},
		{"property and embed", "ref ((" + other + "))\nid:: " + id, []string{id}},
		{"two properties in order", "id:: " + other + "\n- child\n  id:: " + id, []string{other, id}},
		{"tab separator", "id::\t" + id, []string{id}},
		{"no space", "id::" + id, []string{}},
		{"not a uuid", "id:: not-a-uuid", []string{}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAnchorIDs(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractAnchorIDs(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractChunkMetadata(t *testing.T) {
	tests := []struct {
		content   string
		chunkLen  int
		wordCount int
		refs      []string
	}{
		{"This is a test chunk with five words", 36, 8, []string{}},
		{"Met with team about #project-alpha and #2025-01-15", 50, 7, []string{"project-alpha", "2025-01-15"}},
		{"Check #bug-fix! and #feature@v2 (important)", 43, 5, []string{"bug-fix", "feature@v2"}},
		{"Review   #docs    with   #team-lead   tomorrow", 46, 5, []string{"docs", "team-lead"}},
		{"Task\t#urgent\nfollow up #meeting-notes", 37, 5, []string{"urgent", "meeting-notes"}},
		{"", 0, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			md := ExtractChunkMetadata(tt.content)
			if md.ChunkLen != tt.chunkLen {
				t.Errorf("ChunkLen = %d, want %d", md.ChunkLen, tt.chunkLen)
			}
			if md.WordCount != tt.wordCount {
				t.Errorf("WordCount = %d, want %d", md.WordCount, tt.wordCount)
			}
			if !reflect.DeepEqual(md.References, tt.refs) {
				t.Errorf("References = %q, want %q", md.References, tt.refs)
			}
			if md.AnchorIDs == nil {
				t.Errorf("AnchorIDs should be an empty list, got nil")
			}
		})
	}
}

func TestExtractChunkMetadata_CountsRunes(t *testing.T) {
	md := ExtractChunkMetadata("café ☕")
	if md.ChunkLen != 6 {
		t.Errorf("ChunkLen = %d, want 6", md.ChunkLen)
	}
}

func TestExtractChunkMetadata_Anchors(t *testing.T) {
	content := strings.Join([]string{
		"Coding session #work",
		"  id:: 686f4ac0-e43b-4a15-940a-954f55e03bea",
		"  see ((11111111-2222-3333-4444-555555555555))",
	}, "\n")

	md := ExtractChunkMetadata(content)
	want := []string{"686f4ac0-e43b-4a15-940a-954f55e03bea"}
	if !reflect.DeepEqual(md.AnchorIDs, want) {
		t.Errorf("AnchorIDs = %q, want %q", md.AnchorIDs, want)
	}
	if !reflect.DeepEqual(md.References, []string{"work"}) {
		t.Errorf("References = %q, want [work]", md.References)
	}
}
