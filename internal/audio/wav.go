package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	wavHeaderSize = 44

	formatPCM        = 1
	formatExtensible = 0xFFFE
)

var ErrNotWAV = errors.New("not a WAV container")

// WAVParams describes the sample layout of a PCM WAV stream
type WAVParams struct {
	Channels    int
	SampleWidth int // bytes per sample
	SampleRate  int
}

// BlockAlign is the byte size of one frame across all channels
func (p WAVParams) BlockAlign() int {
	return p.Channels * p.SampleWidth
}

// FrameCount returns how many whole frames fit in n bytes
func (p WAVParams) FrameCount(n int) int {
	if p.BlockAlign() == 0 {
		return 0
	}
	return n / p.BlockAlign()
}

// DecodeWAV parses a RIFF/WAVE PCM file and returns its params and raw
// sample frames. The fmt chunk must precede the data chunk. A data chunk
// that declares more bytes than present is clamped to what is available and
// trailing partial frames are dropped.
func DecodeWAV(data []byte) (WAVParams, []byte, error) {
	var params WAVParams
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return params, nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrNotWAV)
	}

	haveFmt := false
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return params, nil, fmt.Errorf("%w: fmt chunk too short", ErrNotWAV)
			}
			tag := binary.LittleEndian.Uint16(data[body : body+2])
			if tag != formatPCM && tag != formatExtensible {
				return params, nil, fmt.Errorf("%w: unsupported format tag %#x", ErrNotWAV, tag)
			}
			params.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			params.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			params.SampleWidth = (bits + 7) / 8
			if params.Channels == 0 || params.SampleWidth == 0 || params.SampleRate == 0 {
				return params, nil, fmt.Errorf("%w: invalid fmt parameters", ErrNotWAV)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return params, nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWAV)
			}
			frames := data[body : body+size]
			usable := params.FrameCount(len(frames)) * params.BlockAlign()
			return params, frames[:usable], nil
		}

		// chunks are word aligned
		pos = body + size + size%2
	}

	return params, nil, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}

// EncodeWAV wraps raw PCM frames in a canonical 44 byte header. A trailing
// partial frame is dropped so the data chunk always holds whole frames.
func EncodeWAV(params WAVParams, frames []byte) []byte {
	frames = frames[:params.FrameCount(len(frames))*params.BlockAlign()]

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(frames)))
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	binary.Write(buf, le, uint32(36+len(frames)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, le, uint32(16))
	binary.Write(buf, le, uint16(formatPCM))
	binary.Write(buf, le, uint16(params.Channels))
	binary.Write(buf, le, uint32(params.SampleRate))
	binary.Write(buf, le, uint32(params.SampleRate*params.BlockAlign()))
	binary.Write(buf, le, uint16(params.BlockAlign()))
	binary.Write(buf, le, uint16(params.SampleWidth*8))

	buf.WriteString("data")
	binary.Write(buf, le, uint32(len(frames)))
	buf.Write(frames)

	return buf.Bytes()
}

// StripWAVHeader returns the PCM frames of a WAV payload, or the input
// unchanged when it is not a WAV container.
func StripWAVHeader(data []byte) []byte {
	_, frames, err := DecodeWAV(data)
	if err != nil {
		return data
	}
	return frames
}
