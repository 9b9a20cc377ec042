package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ob1hnk/triolingo/domain/entities"
)

func TestDecodeWAV_Errors(t *testing.T) {
	valid := wavChunk(4, 0)

	dataBeforeFmt := []byte("RIFF\x00\x00\x00\x00WAVEdata\x02\x00\x00\x00ab")

	float := append([]byte{}, valid...)
	binary.LittleEndian.PutUint16(float[20:22], 3)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"raw pcm", pcmFrames(32, 0)},
		{"data before fmt", dataBeforeFmt},
		{"non pcm tag", float},
		{"no data chunk", valid[:36]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeWAV(tt.data); !errors.Is(err, ErrNotWAV) {
				t.Errorf("Expected ErrNotWAV, got %v", err)
			}
		})
	}
}

func TestDecodeWAV_ClampsTruncatedData(t *testing.T) {
	full := wavChunk(10, 0)
	truncated := full[:len(full)-3]

	params, frames, err := DecodeWAV(truncated)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if len(frames)%params.BlockAlign() != 0 {
		t.Errorf("Frames should be whole, got %d bytes", len(frames))
	}
	if params.FrameCount(len(frames)) != 8 {
		t.Errorf("Expected 8 frames, got %d", params.FrameCount(len(frames)))
	}
}

func TestEncodeWAV_DropsPartialFrame(t *testing.T) {
	tests := []struct {
		name     string
		params   WAVParams
		frames   []byte
		wantData int
	}{
		{"whole mono frames", WAVParams{Channels: 1, SampleWidth: 2, SampleRate: 16000}, []byte{1, 0, 2, 0}, 4},
		{"odd trailing byte", WAVParams{Channels: 1, SampleWidth: 2, SampleRate: 16000}, []byte{1, 0, 2}, 2},
		{"half stereo frame", WAVParams{Channels: 2, SampleWidth: 2, SampleRate: 24000}, []byte{1, 0, 2, 0, 3, 0}, 4},
		{"single byte", WAVParams{Channels: 1, SampleWidth: 2, SampleRate: 16000}, []byte{7}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := EncodeWAV(tt.params, tt.frames)

			if len(out) != wavHeaderSize+tt.wantData {
				t.Errorf("Expected %d bytes, got %d", wavHeaderSize+tt.wantData, len(out))
			}
			if got := binary.LittleEndian.Uint32(out[4:8]); got != uint32(36+tt.wantData) {
				t.Errorf("Expected RIFF size %d, got %d", 36+tt.wantData, got)
			}
			if got := binary.LittleEndian.Uint32(out[40:44]); got != uint32(tt.wantData) {
				t.Errorf("Expected data size %d, got %d", tt.wantData, got)
			}

			_, frames, err := DecodeWAV(out)
			if err != nil {
				t.Fatalf("DecodeWAV failed: %v", err)
			}
			if !bytes.Equal(frames, tt.frames[:tt.wantData]) {
				t.Errorf("Expected frames %v, got %v", tt.frames[:tt.wantData], frames)
			}
		})
	}
}

func TestDecodeWAV_SkipsUnknownChunks(t *testing.T) {
	pcm := pcmFrames(4, 9)
	full := wavChunk(4, 9)

	var b bytes.Buffer
	b.Write(full[:12])
	b.WriteString("LIST")
	binary.Write(&b, binary.LittleEndian, uint32(3))
	b.Write([]byte{1, 2, 3, 0}) // odd size plus pad byte
	b.Write(full[12:])

	_, frames, err := DecodeWAV(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if !bytes.Equal(frames, pcm) {
		t.Error("Frames do not match encoded PCM")
	}
}

func TestStripWAVHeader(t *testing.T) {
	pcm := pcmFrames(4, 1)
	if got := StripWAVHeader(wavChunk(4, 1)); !bytes.Equal(got, pcm) {
		t.Error("Expected header to be stripped")
	}
	if got := StripWAVHeader(pcm); !bytes.Equal(got, pcm) {
		t.Error("Raw PCM should pass through unchanged")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want entities.AudioFormat
	}{
		{"wav", wavChunk(1, 0), entities.AudioFormatWAV},
		{"riff without wave", []byte("RIFF\x00\x00\x00\x00AVI "), entities.AudioFormatWAV},
		{"id3", []byte("ID3\x04\x00"), entities.AudioFormatMP3},
		{"mpeg frame sync", []byte{0xFF, 0xFB, 0x90}, entities.AudioFormatMP3},
		{"mpeg2 frame sync", []byte{0xFF, 0xF3, 0x90}, entities.AudioFormatMP3},
		{"flac", []byte("fLaC\x00"), entities.AudioFormatFLAC},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A "), entities.AudioFormatM4A},
		{"ogg", []byte("OggS\x00\x02"), entities.AudioFormatOGG},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}, entities.AudioFormatWebM},
		{"unknown", []byte("hello"), entities.AudioFormatWAV},
		{"short", []byte{0xFF}, entities.AudioFormatWAV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.data); got != tt.want {
				t.Errorf("DetectFormat() = %s, want %s", got, tt.want)
			}
		})
	}
}
