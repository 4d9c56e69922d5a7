// Package encoder turns uploaded files into the base64 payload the inference
// providers expect.
package encoder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrEncoding                = errors.New("encoding error")
	ErrMalformedRepresentation = fmt.Errorf("%w: malformed-representation", ErrEncoding)
	ErrMIMETypeUnrecoverable   = fmt.Errorf("%w: mime-type-unrecoverable", ErrEncoding)
)

var mimeTypePattern = regexp.MustCompile(`:(.*?);`)

// Payload is the transportable form of a file.
type Payload struct {
	Base64   string
	MIMEType string
}

// ToDataURI renders data as data:<mime>;base64,<body>.
func ToDataURI(data []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// ParseDataURI splits a data URI into its MIME type and base64 body.
func ParseDataURI(uri string) (Payload, error) {
	parts := strings.Split(uri, ",")
	if len(parts) != 2 {
		return Payload{}, fmt.Errorf("%w: got %d segments", ErrMalformedRepresentation, len(parts))
	}

	header, body := parts[0], parts[1]
	match := mimeTypePattern.FindStringSubmatch(header)
	if len(match) < 2 || match[1] == "" {
		return Payload{}, fmt.Errorf("%w: header %q", ErrMIMETypeUnrecoverable, header)
	}

	return Payload{
		Base64:   body,
		MIMEType: match[1],
	}, nil
}

// Encode reads r to the end and returns its base64 payload. An empty
// mimeType is replaced by the sniffed content type.
func Encode(r io.Reader, mimeType string) (Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, fmt.Errorf("read file: %w", err)
	}
	if mimeType == "" {
		mimeType = DetectMIMEType(data)
	}
	return ParseDataURI(ToDataURI(data, mimeType))
}

// DetectMIMEType sniffs the content type of data, without parameters.
func DetectMIMEType(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}
