// Package index turns notes into persisted chunk embeddings: text
// assembly, chunking, embedding, and the background re-index driver.
package index

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/noteum-io/noteum/pkg/notes"
)

var (
	// bboxMarkup matches positional image references emitted by the OCR
	// pipeline, e.g. ![](page=3,bbox=[12,40,200,80]).
	bboxMarkup = regexp.MustCompile(`!\[\]\(page=\d+,\s*bbox=\[[^\]]*\]\)`)

	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// BuildIndexableText assembles the text a note is embedded from. Order
// matters: body (title when empty), a --- separator, then completed
// attachment extractions grouped as documents, OCR text, and vision
// descriptions.
func BuildIndexableText(note *notes.Note, attachments []notes.AttachmentText) string {
	body := strings.TrimSpace(note.PlainBody)
	if body == "" {
		body = strings.TrimSpace(note.Title)
	}

	var docs, ocr, vision []string
	for _, at := range attachments {
		if at.Status != notes.ExtractionCompleted {
			continue
		}

		if strings.HasPrefix(at.MIMEType, "image/") {
			if text := strings.TrimSpace(at.ExtractedText); text != "" {
				ocr = append(ocr, fmt.Sprintf("[OCR: %s]\n%s", at.Filename, cleanOCRText(text)))
			}
			if at.VisionDescription != nil {
				if desc := strings.TrimSpace(*at.VisionDescription); desc != "" {
					vision = append(vision, fmt.Sprintf("[Vision: %s]\n%s", at.Filename, desc))
				}
			}
			continue
		}

		if text := strings.TrimSpace(at.ExtractedText); text != "" {
			docs = append(docs, fmt.Sprintf("[%s: %s]\n%s", documentLabel(at), at.Filename, text))
		}
	}

	var sections []string
	sections = append(sections, docs...)
	sections = append(sections, ocr...)
	sections = append(sections, vision...)

	switch {
	case body == "":
		return strings.Join(sections, "\n\n")
	case len(sections) == 0:
		return body
	default:
		return body + "\n\n---\n\n" + strings.Join(sections, "\n\n")
	}
}

// documentLabel picks the attachment label from MIME type or extension.
func documentLabel(at notes.AttachmentText) string {
	name := strings.ToLower(at.Filename)
	switch {
	case at.MIMEType == "application/pdf" || strings.HasSuffix(name, ".pdf"):
		return "PDF"
	case strings.Contains(at.MIMEType, "wordprocessingml") || strings.HasSuffix(name, ".docx"):
		return "DOCX"
	case strings.Contains(at.MIMEType, "hwp") || strings.Contains(at.MIMEType, "haansoft") ||
		strings.HasSuffix(name, ".hwp") || strings.HasSuffix(name, ".hwpx"):
		return "HWP"
	default:
		return "FILE"
	}
}

// cleanOCRText strips bbox markup and collapses the blank runs left
// behind so chunks stay dense.
func cleanOCRText(text string) string {
	cleaned := bboxMarkup.ReplaceAllString(text, "")
	cleaned = blankRuns.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
