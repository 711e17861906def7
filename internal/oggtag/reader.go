// Package oggtag extracts the comment header from Ogg Opus files.
//
// The OpusTags packet carries a standard vorbis_comment structure after
// its 8-byte magic, the same layout FLAC uses for its VorbisComment
// metadata block, so the body is handed to flacvorbis for parsing rather
// than decoded here.
package oggtag

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"opus2mp3.dev/cli/internal/pool"
)

var (
	// ErrNotOgg reports that the file does not start with an Ogg capture pattern.
	ErrNotOgg = errors.New("not an ogg stream")
	// ErrNoComments reports that no OpusTags packet was found in the header pages.
	ErrNoComments = errors.New("no OpusTags header found")
)

var (
	oggCapture    = []byte("OggS")
	opusTagsMagic = []byte("OpusTags")
)

const (
	pageHeaderSize = 27

	// The comment header must appear within the first pages of the
	// stream. Embedded cover art can push the OpusTags packet across
	// many continuation pages, so the bound is generous.
	maxHeaderPages = 512
)

// ReadComments reads path and returns the parsed OpusTags comment block.
// Page checksums are not verified; a damaged stream surfaces as a parse
// failure instead.
func ReadComments(path string) (*flacvorbis.MetaDataBlockVorbisComment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readComments(bufio.NewReader(f))
}

func readComments(r io.Reader) (*flacvorbis.MetaDataBlockVorbisComment, error) {
	var packet []byte
	for page := 0; page < maxHeaderPages; page++ {
		lacing, payload, err := readPage(r, page == 0)
		if err != nil {
			return nil, err
		}

		offset := 0
		for _, lace := range lacing {
			packet = append(packet, payload[offset:offset+int(lace)]...)
			offset += int(lace)
			if lace == 255 {
				continue // packet continues in the next segment or page
			}
			if bytes.HasPrefix(packet, opusTagsMagic) {
				pool.PutBuffer(payload)
				return parseComments(packet[len(opusTagsMagic):])
			}
			packet = packet[:0]
		}
		pool.PutBuffer(payload)
	}
	return nil, ErrNoComments
}

// readPage consumes one Ogg page and returns its lacing values and
// payload. The payload buffer comes from the buffer pool and must be
// returned by the caller.
func readPage(r io.Reader, first bool) (lacing []byte, payload []byte, err error) {
	header := pool.GetBuffer(pageHeaderSize)
	defer pool.PutBuffer(header)

	if _, err := io.ReadFull(r, header); err != nil {
		if first && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			return nil, nil, ErrNotOgg
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, ErrNoComments
		}
		return nil, nil, fmt.Errorf("read page header: %w", err)
	}
	if !bytes.HasPrefix(header, oggCapture) {
		if first {
			return nil, nil, ErrNotOgg
		}
		return nil, nil, fmt.Errorf("page capture pattern missing")
	}
	if version := header[4]; version != 0 {
		return nil, nil, fmt.Errorf("unsupported ogg page version %d", version)
	}

	segments := int(header[26])
	lacing = make([]byte, segments)
	if _, err := io.ReadFull(r, lacing); err != nil {
		return nil, nil, fmt.Errorf("read lacing table: %w", err)
	}

	size := 0
	for _, lace := range lacing {
		size += int(lace)
	}
	payload = pool.GetBuffer(size)
	if _, err := io.ReadFull(r, payload); err != nil {
		pool.PutBuffer(payload)
		return nil, nil, fmt.Errorf("read page payload: %w", err)
	}
	return lacing, payload, nil
}

func parseComments(body []byte) (*flacvorbis.MetaDataBlockVorbisComment, error) {
	cmts, err := flacvorbis.ParseFromMetaDataBlock(flac.MetaDataBlock{
		Type: flac.VorbisComment,
		Data: body,
	})
	if err != nil {
		return nil, fmt.Errorf("parse OpusTags comments: %w", err)
	}
	return cmts, nil
}
