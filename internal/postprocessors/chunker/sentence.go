package chunker

// span marks a sentence as byte offsets into the source text.
type span struct {
	start int
	end   int
}

// chunkSentences accumulates whole sentences into chunks of at most
// chunkSize bytes, carrying an overlap tail between consecutive chunks.
// A single sentence longer than chunkSize falls back to fixed-size
// splitting.
func (p *Processor) chunkSentences(b *builder, text string) {
	sentences := sentenceSpans(text)

	start := 0        // current chunk start
	cur := 0          // current chunk end so far
	appended := false // whether a whole sentence landed since the last emit

	for i := 0; i < len(sentences); {
		s := sentences[i]

		// Oversized sentence: flush what we have, then fixed-split it.
		if s.end-s.start > p.chunkSize {
			if appended && cur > start {
				b.add(text[start:cur], start, cur)
			}
			p.chunkFixed(b, text, s.start, s.end)
			start, cur, appended = s.end, s.end, false
			i++
			continue
		}

		// Sentence does not fit in the current chunk.
		if s.end-start > p.chunkSize {
			if appended {
				b.add(text[start:cur], start, cur)
				// Carry the overlap tail into the next chunk.
				start = cur - p.overlap
				if start < 0 {
					start = 0
				}
				appended = false
				continue
			}
			// Only the carried tail is pending and the sentence still
			// does not fit alongside it. Abandon the carry rather than
			// degrade into byte-stepping.
			start, cur = s.start, s.start
		}

		cur = s.end
		appended = true
		i++
	}

	if appended && cur > start {
		b.add(text[start:cur], start, cur)
	}
}

// sentenceSpans splits text into contiguous spans covering the whole
// string. A sentence ends after '.', '!' or '?' (plus trailing quotes or
// brackets) followed by whitespace, or at a newline. Trailing whitespace
// belongs to the sentence it follows, so concatenating all spans
// reconstructs the input exactly.
func sentenceSpans(text string) []span {
	var spans []span
	start := 0

	for i := 0; i < len(text); {
		switch c := text[i]; {
		case c == '\n':
			j := i + 1
			for j < len(text) && isSpaceByte(text[j]) {
				j++
			}
			spans = append(spans, span{start, j})
			start, i = j, j

		case c == '.' || c == '!' || c == '?':
			j := i + 1
			for j < len(text) && isCloserByte(text[j]) {
				j++
			}
			if j < len(text) && !isSpaceByte(text[j]) {
				// Mid-token punctuation (decimal point, abbreviation).
				i = j
				continue
			}
			for j < len(text) && isSpaceByte(text[j]) {
				j++
			}
			spans = append(spans, span{start, j})
			start, i = j, j

		default:
			i++
		}
	}

	if start < len(text) {
		spans = append(spans, span{start, len(text)})
	}
	return spans
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isCloserByte(c byte) bool {
	return c == '"' || c == '\'' || c == ')' || c == ']'
}
