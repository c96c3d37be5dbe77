// Package chunker implements the markdown-aware, heading-tracking KB
// chunker (C9): paragraph/heading-aware chunking with size/overlap
// invariants, shared between the (out-of-scope) ingestion surface and the
// core retriever's data shape.
package chunker

import (
	"errors"
	"strings"
)

// ErrInvalidWindow is returned when chunkSize does not exceed overlap.
var ErrInvalidWindow = errors.New("chunk_size must be greater than overlap")

// Piece is one emitted unit of chunked text with its heading context.
type Piece struct {
	Content     string
	HeadingPath string
}

type heading struct {
	level int
	text  string
}

type paragraph struct {
	text        string
	headingPath string
}

// Chunk splits text into an ordered list of chunks, honoring:
//   - a heading stack (`#`, `##`, ...) that tracks the current heading_path;
//     a heading line is emitted as its own paragraph;
//   - blank-line-separated paragraphs, concatenated up to chunkSize while
//     they share a heading path;
//   - a heading-path change forcing a flush of the pending buffer;
//   - paragraphs at or above chunkSize sliced into chunkSize windows with
//     overlap characters of trailing context carried into the next window.
func Chunk(text string, chunkSize, overlap int) ([]Piece, error) {
	if chunkSize <= overlap {
		return nil, ErrInvalidWindow
	}

	paragraphs := splitParagraphs(text)

	var chunks []Piece
	var buf, bufHeading string

	pushChunk := func(value, headingPath string) {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			chunks = append(chunks, Piece{Content: trimmed, HeadingPath: headingPath})
		}
	}

	for _, para := range paragraphs {
		headingPath := para.headingPath
		textBlock := para.text

		if buf != "" && headingPath != bufHeading {
			pushChunk(buf, bufHeading)
			buf, bufHeading = "", ""
		}

		if len(textBlock) >= chunkSize {
			if buf != "" {
				pushChunk(buf, bufHeading)
				buf, bufHeading = "", ""
			}
			start := 0
			for start < len(textBlock) {
				end := start + chunkSize
				if end > len(textBlock) {
					end = len(textBlock)
				}
				pushChunk(textBlock[start:end], headingPath)
				if end == len(textBlock) {
					break
				}
				start = end - overlap
				if start < 0 {
					start = 0
				}
			}
			continue
		}

		if buf == "" {
			buf = textBlock
			bufHeading = headingPath
			continue
		}

		candidate := buf + "\n\n" + textBlock
		if len(candidate) <= chunkSize {
			buf = candidate
		} else {
			pushChunk(buf, bufHeading)
			buf = textBlock
			bufHeading = headingPath
		}
	}

	if buf != "" {
		pushChunk(buf, bufHeading)
	}

	return chunks, nil
}

// splitParagraphs walks text line by line, tracking the heading stack and
// grouping non-blank, non-heading lines into paragraphs.
func splitParagraphs(text string) []paragraph {
	lines := strings.Split(text, "\n")

	var paragraphs []paragraph
	var current []string
	var stack []heading

	headingPath := func() string {
		var parts []string
		for _, h := range stack {
			if h.text != "" {
				parts = append(parts, h.text)
			}
		}
		return strings.Join(parts, " > ")
	}

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, paragraph{
				text:        strings.TrimSpace(strings.Join(current, "\n")),
				headingPath: headingPath(),
			})
			current = nil
		}
	}

	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		stripped := strings.TrimSpace(line)

		if strings.HasPrefix(stripped, "#") {
			flush()
			level := len(strings.SplitN(stripped, " ", 2)[0])
			headingText := strings.TrimSpace(strings.TrimLeft(stripped, "#"))

			for len(stack) > 0 && stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, heading{level: level, text: headingText})

			paragraphs = append(paragraphs, paragraph{
				text:        stripped,
				headingPath: headingPath(),
			})
			continue
		}

		if stripped == "" {
			flush()
			continue
		}

		current = append(current, stripped)
	}
	flush()

	return paragraphs
}
