package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a one-page PDF that draws text in Helvetica.
func minimalPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFText(t *testing.T) {
	text, err := pdfText(minimalPDF("Returns are accepted within thirty days"))
	require.NoError(t, err)
	assert.Contains(t, text, "Returns are accepted within thirty days")
}

func TestPDFText_Unreadable(t *testing.T) {
	for name, data := range map[string][]byte{
		"header only": []byte("%PDF-1.7"),
		"not a pdf":   []byte("plain text pretending"),
		"truncated":   minimalPDF("cut short")[:60],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := pdfText(data)
			assert.ErrorIs(t, err, ErrUnreadableDocument)
		})
	}
}

func TestIngest_PDF(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryIndex(), zerolog.Nop())

	n, err := svc.Ingest(ctx, 1, "Policy.PDF", bytes.NewReader(minimalPDF("The warranty covers parts for two years")))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.For(1).Search(ctx, "warranty")
	require.NoError(t, err)
	assert.True(t, strings.Contains(got, "warranty covers parts"), got)
}
