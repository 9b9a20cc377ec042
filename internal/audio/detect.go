package audio

import (
	"bytes"

	"github.com/ob1hnk/triolingo/domain/entities"
)

type magic struct {
	offset int
	bytes  []byte
}

type signature struct {
	format entities.AudioFormat
	// every marker must match
	markers []magic
}

// signatures is checked in order. Decoders are never probed since many of
// them accept arbitrary bytes.
var signatures = []signature{
	{entities.AudioFormatWAV, []magic{{0, []byte("RIFF")}, {8, []byte("WAVE")}}},
	{entities.AudioFormatMP3, []magic{{0, []byte("ID3")}}},
	{entities.AudioFormatMP3, []magic{{0, []byte{0xFF, 0xFB}}}},
	{entities.AudioFormatMP3, []magic{{0, []byte{0xFF, 0xF3}}}},
	{entities.AudioFormatMP3, []magic{{0, []byte{0xFF, 0xF2}}}},
	{entities.AudioFormatFLAC, []magic{{0, []byte("fLaC")}}},
	{entities.AudioFormatM4A, []magic{{4, []byte("ftyp")}}},
	{entities.AudioFormatOGG, []magic{{0, []byte("OggS")}}},
	{entities.AudioFormatWebM, []magic{{0, []byte{0x1A, 0x45, 0xDF, 0xA3}}}},
}

// DetectFormat identifies a payload by its leading bytes, defaulting to WAV
func DetectFormat(data []byte) entities.AudioFormat {
	for _, sig := range signatures {
		if sig.matches(data) {
			return sig.format
		}
	}
	return entities.AudioFormatWAV
}

func (s signature) matches(data []byte) bool {
	for _, m := range s.markers {
		end := m.offset + len(m.bytes)
		if len(data) < end || !bytes.Equal(data[m.offset:end], m.bytes) {
			return false
		}
	}
	return true
}
