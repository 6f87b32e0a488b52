package transcribe

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const defaultTitle = "Event Transcript"

var titles = map[string]string{
	"English": "Event Transcript",
	"Yoruba":  "Itumọ́ Ayẹyẹ",
	"Arabic":  "نص الحدث",
	"Spanish": "Transcripción del Evento",
	"French":  "Transcription de l'Événement",
}

// TitleFor returns the document title for a language name, falling back
// to English.
func TitleFor(language string) string {
	if t, ok := titles[language]; ok {
		return t
	}
	return defaultTitle
}

// RenderPDF lays out a titled transcript.  The core fonts cover Latin-1
// only; characters outside it are dropped by the translator.
func RenderPDF(title, text string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(0, 10, tr(title), "", "C", false)
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 12)
	pdf.MultiCell(0, 6, tr(text), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}
	return buf.Bytes(), nil
}
