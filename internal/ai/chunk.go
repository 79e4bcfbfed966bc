package ai

import "strings"

func isTerminal(r rune) bool {
	switch r {
	case '。', '！', '？', '…':
		return true
	}
	return false
}

// splitSentences cuts text after each terminal mark, keeping the mark with
// its sentence. Parts that are empty after trimming are dropped.
func splitSentences(text string) []string {
	var (
		parts []string
		b     strings.Builder
	)
	flush := func() {
		if strings.TrimSpace(b.String()) != "" {
			parts = append(parts, b.String())
		}
		b.Reset()
	}
	for _, r := range text {
		b.WriteRune(r)
		if isTerminal(r) {
			flush()
		}
	}
	flush()
	return parts
}

func capRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// chunkText packs whole sentences into chunks of at most limit runes. A single
// sentence longer than limit is split at the limit.
func chunkText(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	var (
		chunks []string
		cur    []rune
	)
	emit := func() {
		if len(cur) > 0 {
			chunks = append(chunks, string(cur))
			cur = nil
		}
	}
	for _, s := range splitSentences(text) {
		r := []rune(s)
		if len(cur)+len(r) > limit {
			emit()
		}
		for len(r) > limit {
			chunks = append(chunks, string(r[:limit]))
			r = r[limit:]
		}
		cur = append(cur, r...)
	}
	emit()
	return chunks
}
