package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Filename", "Student", "Status"},
		Rows: []map[string]string{
			{"Filename": "transcript.pdf", "Student": "Jane Roe", "Status": "APPROVED"},
			{"Filename": "id, front.png", "Student": "John Doe"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset(), "ignored")
	require.NoError(t, err)

	expected := "Filename,Student,Status\ntranscript.pdf,Jane Roe,APPROVED\n\"id, front.png\",John Doe,\n"
	assert.Equal(t, expected, string(out))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{}, "")
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Document search")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	data := Dataset{
		Headers: []string{"Filename"},
		Rows:    []map[string]string{{"Filename": "=HYPERLINK(\"x\")"}, {"Filename": "-1"}, {"Filename": "plain"}},
	}
	out, err := NewCSVExporter().Render(data, "")
	require.NoError(t, err)
	assert.Equal(t, "Filename\n\"'=HYPERLINK(\"\"x\"\")\"\n'-1\nplain\n", string(out))
}
