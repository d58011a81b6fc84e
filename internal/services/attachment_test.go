package services

import (
	"bytes"
	"testing"

	"github.com/sameboat/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

func TestValidateAttachment(t *testing.T) {
	tests := []struct {
		name     string
		in       *Attachment
		max      int64
		wantName string
		wantErr  bool
	}{
		{"pdf", &Attachment{Filename: "CV.pdf", Data: pdfBytes}, 0, "CV.pdf", false},
		{"text with accents", &Attachment{Filename: "lettre résumé.txt", Data: []byte("Bonjour")}, 0, "lettreresume.txt", false},
		{"png", &Attachment{Filename: "../../shot.png", Data: pngBytes}, 0, "shot.png", false},
		{"empty", &Attachment{Filename: "cv.pdf"}, 0, "", true},
		{"nil", nil, 0, "", true},
		{"too large", &Attachment{Filename: "cv.pdf", Data: pdfBytes}, 8, "", true},
		{"extension not allowed", &Attachment{Filename: "run.exe", Data: []byte("MZ\x90\x00")}, 0, "", true},
		{"content disagrees with extension", &Attachment{Filename: "cv.pdf", Data: pngBytes}, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateAttachment("resume", tt.in, tt.max)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, got.Filename)
			assert.True(t, bytes.Equal(tt.in.Data, got.Data))
		})
	}
}
