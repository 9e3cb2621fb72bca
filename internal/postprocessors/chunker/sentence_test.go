package chunker

import (
	"strings"
	"testing"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

func TestSentenceSpans(t *testing.T) {
	t.Run("splits on terminal punctuation", func(t *testing.T) {
		text := "First sentence. Second one! Third?"
		spans := sentenceSpans(text)

		if len(spans) != 3 {
			t.Fatalf("expected 3 sentences, got %d", len(spans))
		}
		if got := text[spans[0].start:spans[0].end]; got != "First sentence. " {
			t.Errorf("unexpected first sentence: %q", got)
		}
		if got := text[spans[2].start:spans[2].end]; got != "Third?" {
			t.Errorf("unexpected last sentence: %q", got)
		}
	})

	t.Run("splits on newlines", func(t *testing.T) {
		text := "line one\nline two\nline three"
		spans := sentenceSpans(text)
		if len(spans) != 3 {
			t.Fatalf("expected 3 sentences, got %d", len(spans))
		}
	})

	t.Run("keeps decimals together", func(t *testing.T) {
		text := "The value is 3.5 units. Done."
		spans := sentenceSpans(text)
		if len(spans) != 2 {
			t.Fatalf("expected 2 sentences, got %d", len(spans))
		}
	})

	t.Run("spans reconstruct the input", func(t *testing.T) {
		text := "One. Two!\n\nThree? Four with 1.5 numbers. Trailing tail"
		var rebuilt strings.Builder
		for _, s := range sentenceSpans(text) {
			rebuilt.WriteString(text[s.start:s.end])
		}
		if rebuilt.String() != text {
			t.Error("concatenated spans do not reconstruct the input")
		}
	})
}

func TestProcessor_Chunk_SentenceMode(t *testing.T) {
	t.Run("keeps sentences whole", func(t *testing.T) {
		p := New(WithChunkSize(60), WithOverlap(10), WithSentenceSplitting())
		text := "Alpha is first. Beta follows after it. Gamma closes the set. Delta opens a new one. Epsilon ends here."

		chunks := p.Chunk("doc", domain.SourceTypeFile, text)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}

		for _, c := range chunks {
			if len(c.Text) > 60 {
				t.Errorf("chunk %s exceeds the configured size: %d bytes", c.ID, len(c.Text))
			}
			if text[c.StartOffset:c.EndOffset] != c.Text {
				t.Errorf("chunk %s text does not match its span", c.ID)
			}
		}
	})

	t.Run("falls back to fixed-size for an oversized sentence", func(t *testing.T) {
		p := New(WithChunkSize(50), WithOverlap(10), WithSentenceSplitting())
		long := strings.Repeat("x", 180) // one sentence, no punctuation
		text := "Short intro. " + long

		chunks := p.Chunk("doc", domain.SourceTypeFile, text)

		var oversized int
		for _, c := range chunks {
			if len(c.Text) > 50 {
				oversized++
			}
		}
		if oversized != 0 {
			t.Errorf("expected every chunk at most the configured size, found %d larger", oversized)
		}
		assertReconstructs(t, text, chunks)
	})

	t.Run("covers all text", func(t *testing.T) {
		p := New(WithChunkSize(80), WithOverlap(16), WithSentenceSplitting())
		text := strings.Repeat("Sentences vary in length here. Some are short. Others run a little longer than that. ", 6)

		chunks := p.Chunk("doc", domain.SourceTypeFile, text)
		assertReconstructs(t, text, chunks)
	})
}
