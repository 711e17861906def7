// Package tagcopy copies the tag set and cover art of a source Opus
// file into the ID3v2 container of the encoded MP3. Everything here is
// best-effort: the audio and primary stream of the output are already
// written by the encode pass, so failures surface as warnings and never
// undo the conversion.
package tagcopy

import (
	"path/filepath"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"opus2mp3.dev/cli/internal/event"
	"opus2mp3.dev/cli/internal/metrics"
	"opus2mp3.dev/cli/internal/oggtag"
)

// pictureField is the vorbis comment carrying base64 picture blocks.
const pictureField = "METADATA_BLOCK_PICTURE"

// textFrames is the closed mapping from vorbis comment fields to ID3v2.4
// text frames. Fields outside this table are not transplanted.
var textFrames = []struct {
	field   string
	frameID string
}{
	{flacvorbis.FIELD_TITLE, "TIT2"},
	{flacvorbis.FIELD_ARTIST, "TPE1"},
	{flacvorbis.FIELD_ALBUM, "TALB"},
	{flacvorbis.FIELD_GENRE, "TCON"},
	{flacvorbis.FIELD_TRACKNUMBER, "TRCK"},
}

// Transplanter copies metadata from source to destination containers.
type Transplanter struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Transplanter {
	return &Transplanter{logger: logger}
}

// Transplant copies the front cover and the mapped text tags from
// srcPath into the ID3v2 tag of destPath. All failures are reported as
// Warning events on emit.
func (t *Transplanter) Transplant(srcPath, destPath string, emit event.Emitter) {
	srcName := filepath.Base(srcPath)
	destName := filepath.Base(destPath)

	cmts, err := oggtag.ReadComments(srcPath)
	if err != nil {
		t.warn(emit, "No tags found in %s: %v", srcName, err)
		return
	}

	tag, err := id3v2.Open(destPath, id3v2.Options{Parse: true})
	if err != nil {
		t.warn(emit, "Error copying tags from %s to %s: %v", srcName, destName, err)
		return
	}
	defer tag.Close()

	t.copyCover(cmts, tag, srcName, emit)
	t.copyTextTags(cmts, tag, srcName, emit)

	if err := tag.Save(); err != nil {
		t.warn(emit, "Error writing tags to %s: %v", destName, err)
		return
	}

	emit.Emit(event.Info, "Copied tags from %s to %s.", srcName, destName)
	t.logger.Debug("metadata transplanted",
		zap.String("source", srcPath), zap.String("destination", destPath))
}

// copyCover runs the picture decoder chain over the source's embedded
// pictures and replaces the destination's cover entries with the first
// usable front cover.
func (t *Transplanter) copyCover(cmts *flacvorbis.MetaDataBlockVorbisComment, tag *id3v2.Tag, srcName string, emit event.Emitter) {
	values, err := cmts.Get(pictureField)
	if err != nil || len(values) == 0 {
		t.warn(emit, "No metadata block pictures found in %s", srcName)
		return
	}

	cover, ok := FindFrontCover(values)
	if !ok {
		t.warn(emit, "No valid front cover found in %s", srcName)
		return
	}

	// Drop existing picture frames so re-runs do not accumulate covers.
	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    cover.MIME,
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     cover.Data,
	})
	metrics.Global.RecordCoverCopied()
}

func (t *Transplanter) copyTextTags(cmts *flacvorbis.MetaDataBlockVorbisComment, tag *id3v2.Tag, srcName string, emit event.Emitter) {
	for _, frame := range textFrames {
		values, err := cmts.Get(frame.field)
		if err != nil {
			continue
		}
		values = lo.Filter(values, func(v string, _ int) bool { return v != "" })
		if len(values) == 0 {
			continue
		}
		tag.AddTextFrame(frame.frameID, tag.DefaultEncoding(), strings.Join(values, "/"))
	}

	dates, err := cmts.Get(flacvorbis.FIELD_DATE)
	if err != nil || len(dates) == 0 {
		return
	}
	if years := t.yearsFrom(dates, srcName, emit); len(years) > 0 {
		tag.AddTextFrame("TDRC", tag.DefaultEncoding(), strings.Join(years, "/"))
	}
}

// yearsFrom reduces date values to their years. Unparsable values are
// skipped with a warning each; the remaining valid years are still
// written.
func (t *Transplanter) yearsFrom(dates []string, srcName string, emit event.Emitter) []string {
	var years []string
	for _, date := range dates {
		year, ok := yearOf(date)
		if !ok {
			t.warn(emit, "Invalid date format in %s: %q. Skipping this date value.", srcName, date)
			continue
		}
		years = append(years, year)
	}
	return years
}

func (t *Transplanter) warn(emit event.Emitter, format string, args ...any) {
	metrics.Global.RecordTagWarning()
	emit.Emit(event.Warning, format, args...)
}
