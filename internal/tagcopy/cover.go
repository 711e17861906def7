package tagcopy

import (
	"encoding/base64"

	"github.com/go-flac/flacpicture"
	flac "github.com/go-flac/go-flac"

	"opus2mp3.dev/cli/internal/sniff"
)

// Cover is one front-cover image ready to embed in the output.
type Cover struct {
	MIME string
	Data []byte
}

// coverDecoder attempts to turn one picture payload into a usable front
// cover. Decoders are tried in order until one recognises the payload;
// a recognised payload that is not a front cover ends the chain for
// that value without producing a cover.
type coverDecoder func(data []byte) (cover *Cover, recognised bool)

var coverDecoders = []coverDecoder{
	structuredCover,
	rawCover,
}

// FindFrontCover scans the metadata_block_picture values of a source
// file and returns the first usable front cover.
func FindFrontCover(values []string) (*Cover, bool) {
	for _, value := range values {
		data := decodePictureData(value)
		if len(data) == 0 {
			continue
		}
		for _, decode := range coverDecoders {
			cover, recognised := decode(data)
			if !recognised {
				continue
			}
			if cover != nil {
				return cover, true
			}
			break // recognised but not a front cover, try the next value
		}
	}
	return nil, false
}

// decodePictureData undoes the base64 transport encoding of a
// metadata_block_picture comment value. Payloads that are not valid
// base64 are passed through as raw bytes.
func decodePictureData(value string) []byte {
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return []byte(value)
	}
	return data
}

// structuredCover parses the payload as a FLAC picture block. A block
// that parses but carries some other picture type is recognised yet
// yields no cover, which keeps non-front pictures from falling through
// to the raw decoder.
func structuredCover(data []byte) (*Cover, bool) {
	pic, err := flacpicture.ParseFromMetaDataBlock(flac.MetaDataBlock{
		Type: flac.Picture,
		Data: data,
	})
	if err != nil {
		return nil, false
	}
	if pic.PictureType != flacpicture.PictureTypeFrontCover {
		return nil, true
	}
	return &Cover{MIME: pic.MIME, Data: pic.ImageData}, true
}

// rawCover treats the payload as a bare image and sniffs its MIME type
// from the leading bytes, defaulting to JPEG.
func rawCover(data []byte) (*Cover, bool) {
	if len(data) == 0 {
		return nil, false
	}
	return &Cover{MIME: sniff.ImageMIMEWithFallback(data), Data: data}, true
}
