package delivery

import "fmt"

// TruncationMarker is appended to the last retained part when a message is cut to fit MaxParts.
const TruncationMarker = "..."

// Part is one labeled slice of a message.
type Part struct {
	Index int
	Total int
	// Text is the slice of the source message carried by this part.
	Text string
	// Body is what goes over the wire: Text with its "(Part i/N)" prefix when Total > 1.
	Body string
}

// PlanOptions bounds a plan.
type PlanOptions struct {
	MaxParts int
	// HardLimit is the transport's per-message limit in characters. Zero disables the check.
	HardLimit int
}

// Plan splits text into ordered parts of at most chunkSize characters.
//
// Characters are counted as runes. When the split needs more than MaxParts parts the
// text is truncated to fill exactly MaxParts parts, ending with TruncationMarker.
// Multi-part plans are labeled after truncation; if chunkSize plus the widest label
// would break HardLimit, the content per part shrinks by the label width instead.
// Sizes of len(TruncationMarker) or less are raised to len(TruncationMarker)+1 so a
// truncated plan still carries text; the chunkSize bound holds only above that.
func Plan(text string, chunkSize int, opts PlanOptions) []Part {
	runes := []rune(text)
	if len(runes) == 0 || chunkSize <= 0 {
		return nil
	}
	maxParts := opts.MaxParts
	if maxParts <= 0 {
		maxParts = 1
	}

	size := chunkSize
	if opts.HardLimit > 0 && size > opts.HardLimit {
		size = opts.HardLimit
	}
	if len(runes) <= size {
		s := string(runes)
		return []Part{{Index: 1, Total: 1, Text: s, Body: s}}
	}

	if opts.HardLimit > 0 && maxParts > 1 {
		reserve := LabelWidth(maxParts)
		if size+reserve > opts.HardLimit {
			size = opts.HardLimit - reserve
		}
	}
	if size <= len(TruncationMarker) {
		size = len(TruncationMarker) + 1
	}

	chunks := split(runes, size)
	if len(chunks) > maxParts {
		keep := size*maxParts - len(TruncationMarker)
		truncated := append(append([]rune{}, runes[:keep]...), []rune(TruncationMarker)...)
		chunks = split(truncated, size)
	}

	parts := make([]Part, len(chunks))
	for i, chunk := range chunks {
		body := chunk
		if len(chunks) > 1 {
			body = label(i+1, len(chunks)) + chunk
		}
		parts[i] = Part{Index: i + 1, Total: len(chunks), Text: chunk, Body: body}
	}
	return parts
}

func split(runes []rune, size int) []string {
	out := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// LabelWidth is the widest "(Part i/N)" prefix a plan of up to maxParts parts adds.
func LabelWidth(maxParts int) int {
	if maxParts <= 1 {
		return 0
	}
	return len([]rune(label(maxParts, maxParts)))
}

func label(index, total int) string {
	return fmt.Sprintf("(Part %d/%d)\n", index, total)
}
