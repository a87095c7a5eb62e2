package embedding

import (
	"strings"
	"testing"

	"github.com/noteum-io/noteum/pkg/config"
)

// charChunkerConfig uses a model with no tokenizer so chunking falls
// back to character mode deterministically.
func charChunkerConfig(chunkChars, overlap int) *config.EmbeddingConfig {
	return &config.EmbeddingConfig{
		Model:             "local-e5-small",
		ChunkTokens:       500,
		ChunkTokenOverlap: 50,
		ChunkChars:        chunkChars,
		ChunkCharOverlap:  overlap,
	}
}

func TestChunker_Empty(t *testing.T) {
	c := NewChunker(charChunkerConfig(100, 20))

	if got := c.Chunk(""); got != nil {
		t.Errorf("Chunk(\"\") = %v, want nil", got)
	}
	if got := c.Chunk("   \n\t  "); got != nil {
		t.Errorf("Chunk(whitespace) = %v, want nil", got)
	}
}

func TestChunker_ShortInputSingleChunk(t *testing.T) {
	c := NewChunker(charChunkerConfig(100, 20))

	text := "short note body"
	got := c.Chunk(text)
	if len(got) != 1 || got[0] != text {
		t.Errorf("Chunk = %v, want [%q]", got, text)
	}
}

func TestChunker_CharOverlap(t *testing.T) {
	c := NewChunker(charChunkerConfig(100, 20))

	text := strings.Repeat("a", 250)
	got := c.Chunk(text)

	// step 80: chunks at 0..100, 80..180, 160..250
	if len(got) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(got))
	}
	if len(got[0]) != 100 || len(got[1]) != 100 || len(got[2]) != 90 {
		t.Errorf("chunk lengths = %d/%d/%d", len(got[0]), len(got[1]), len(got[2]))
	}
}

func TestChunker_RuneSafety(t *testing.T) {
	c := NewChunker(charChunkerConfig(10, 2))

	// 25 Hangul syllables, 3 bytes each; byte-based slicing would split
	// mid-rune.
	text := strings.Repeat("가나다하마", 5)
	got := c.Chunk(text)

	for i, chunk := range got {
		if !strings.ContainsAny(chunk, "가나다하마") {
			t.Errorf("chunk %d lost content: %q", i, chunk)
		}
		for _, r := range chunk {
			if r == '�' {
				t.Errorf("chunk %d contains replacement rune: %q", i, chunk)
			}
		}
	}

	var total int
	for _, chunk := range got {
		if n := len([]rune(chunk)); n > 10 {
			t.Errorf("chunk exceeds size: %d runes", n)
		} else {
			total += n
		}
	}
	if total < 25 {
		t.Errorf("chunks cover %d runes, want at least the input's 25", total)
	}
}

func TestChunker_CoverageComplete(t *testing.T) {
	c := NewChunker(charChunkerConfig(50, 10))

	// Distinct runes let us verify nothing is dropped.
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		sb.WriteRune(rune('A' + i%26))
	}
	text := sb.String()
	got := c.Chunk(text)

	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}

	// The last chunk must end with the final rune of the input.
	last := got[len(got)-1]
	if !strings.HasSuffix(text, last[len(last)-1:]) {
		t.Errorf("last chunk does not reach end of input")
	}
}
