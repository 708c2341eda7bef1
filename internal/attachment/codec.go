// Package attachment turns uploaded base64 payloads into attachment bytes.
package attachment

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nhle/todoplus/internal/apperr"
)

const base64Marker = ";base64,"

// Upload is one file as received from a client. Base64 may carry a
// data URL prefix such as "data:image/png;base64,".
type Upload struct {
	Name        string
	Base64      string
	ContentType string
}

// File is a decoded upload ready to be stored.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Decode strips any data URL prefix from u.Base64 and decodes the rest.
// The content type comes from u.ContentType, then the data URL, then
// sniffing the decoded bytes.
func Decode(u Upload) (File, error) {
	payload, urlType := splitDataURL(strings.TrimSpace(u.Base64))

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return File{}, fmt.Errorf("decoding %q: %w", u.Name, err)
	}

	contentType := strings.TrimSpace(u.ContentType)
	if contentType == "" {
		contentType = urlType
	}
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}

	return File{Name: u.Name, ContentType: contentType, Data: data}, nil
}

// DecodeAll decodes every upload or none. The returned error names the
// index of the first payload that failed.
func DecodeAll(uploads []Upload) ([]File, error) {
	files := make([]File, 0, len(uploads))
	for i, u := range uploads {
		f, err := Decode(u)
		if err != nil {
			e := apperr.Invalid("attachment %d is not valid base64", i)
			e.Fields = []apperr.FieldError{{Field: fmt.Sprintf("attachments[%d].base64", i), Rule: "base64"}}
			e.Err = err
			return nil, e
		}
		files = append(files, f)
	}
	return files, nil
}

// splitDataURL returns the payload after the last ";base64," marker and the
// media type declared before it, if any.
func splitDataURL(s string) (payload, mediaType string) {
	i := strings.LastIndex(s, base64Marker)
	if i < 0 {
		return s, ""
	}
	head := s[:i]
	if rest, ok := strings.CutPrefix(head, "data:"); ok {
		mediaType = rest
	}
	return s[i+len(base64Marker):], mediaType
}
