package ingest

import "strings"

// maxChunkLen bounds chunk size in bytes. Paragraphs are packed greedily
// until the next one would overflow; a single oversized paragraph becomes
// its own chunk rather than being split mid-sentence.
const maxChunkLen = 1200

// chunkText splits plain text into embedding-sized chunks on paragraph
// boundaries. Blank-only input yields no chunks.
func chunkText(text string) []string {
	paras := strings.Split(text, "\n\n")

	var chunks []string
	var cur strings.Builder
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(p)+2 > maxChunkLen {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
