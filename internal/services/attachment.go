package services

import (
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sameboat/backend/internal/utils"
)

const DefaultMaxUploadBytes = 10 << 20

// Attachment is a file received with a create or update request.
type Attachment struct {
	Filename string
	Data     []byte
}

// allowedTypes maps an accepted extension to the MIME types its content may
// sniff as. Parents in the mimetype tree count, so a .docx may sniff as zip.
var allowedTypes = map[string][]string{
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword", "application/x-ole-storage"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	".txt":  {"text/plain"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".gif":  {"image/gif"},
}

// ValidateAttachment checks size, extension and sniffed content, and
// returns the attachment with its filename sanitized.
func ValidateAttachment(field string, a *Attachment, maxBytes int64) (*Attachment, error) {
	const op = "JobService.ValidateAttachment"

	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if a == nil || len(a.Data) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, field+": file is empty", nil)
	}
	if int64(len(a.Data)) > maxBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op,
			fmt.Sprintf("%s: file exceeds %d bytes", field, maxBytes), nil)
	}

	name := utils.SanitizeFilename(a.Filename)
	ext := strings.ToLower(path.Ext(name))
	allowed, ok := allowedTypes[ext]
	if !ok {
		return nil, utils.E(utils.CodeInvalidArgument, op, field+": unsupported file type "+ext, nil)
	}

	detected := mimetype.Detect(a.Data)
	if !matchesAny(detected, allowed) {
		return nil, utils.E(utils.CodeInvalidArgument, op,
			fmt.Sprintf("%s: content %s does not match %s", field, detected.String(), ext), nil)
	}

	return &Attachment{Filename: name, Data: a.Data}, nil
}

func matchesAny(m *mimetype.MIME, allowed []string) bool {
	for ; m != nil; m = m.Parent() {
		for _, a := range allowed {
			if m.Is(a) {
				return true
			}
		}
	}
	return false
}
