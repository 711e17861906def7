package sniff

import (
	"bytes"
)

type Sniffer interface {
	Sniff(header []byte) bool
}

type prefixSniffer []byte

func (s prefixSniffer) Sniff(header []byte) bool {
	return bytes.HasPrefix(header, s)
}

// riffSniffer matches RIFF containers with the given form type at offset 8.
type riffSniffer struct {
	form string
}

func (s riffSniffer) Sniff(header []byte) bool {
	if len(header) < 12 || !bytes.HasPrefix(header, []byte("RIFF")) {
		return false
	}
	return string(header[8:12]) == s.form
}

// imageMIMEs is checked in order; more specific signatures first.
// ref: https://mimesniff.spec.whatwg.org
var imageMIMEs = []struct {
	mime    string
	sniffer Sniffer
}{
	{"image/png", prefixSniffer{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}},
	{"image/jpeg", prefixSniffer{0xff, 0xd8, 0xff}},
	{"image/gif", prefixSniffer("GIF8")},
	{"image/webp", riffSniffer{form: "WEBP"}},
	{"image/bmp", prefixSniffer("BM")},
}

// ImageMIME sniffs the known image types and returns the MIME type.
// header is recommended to be at least 16 bytes.
func ImageMIME(header []byte) (string, bool) {
	for _, entry := range imageMIMEs {
		if entry.sniffer.Sniff(header) {
			return entry.mime, true
		}
	}
	return "", false
}

// ImageMIMEWithFallback is equivalent to ImageMIME, but defaults to
// image/jpeg when the payload is not recognised. Embedded cover art
// without a self-describing container is most likely to be JPEG.
func ImageMIMEWithFallback(header []byte) string {
	mime, ok := ImageMIME(header)
	if !ok {
		return "image/jpeg"
	}
	return mime
}
