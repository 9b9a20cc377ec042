package entities

import "strings"

// AudioFormat identifies the container or encoding of an audio payload
type AudioFormat string

const (
	AudioFormatWAV   AudioFormat = "wav"
	AudioFormatPCM16 AudioFormat = "pcm16"
	AudioFormatMP3   AudioFormat = "mp3"
	AudioFormatFLAC  AudioFormat = "flac"
	AudioFormatM4A   AudioFormat = "m4a"
	AudioFormatOGG   AudioFormat = "ogg"
	AudioFormatWebM  AudioFormat = "webm"
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	// DefaultSampleWidth is the byte width of one PCM sample used when a
	// container header has to be synthesized.
	DefaultSampleWidth = 2
)

// ParseAudioFormat normalizes a client supplied format name. Empty input
// maps to WAV; unknown names are kept as-is so they travel the degraded
// byte-join path.
func ParseAudioFormat(s string) AudioFormat {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "":
		return AudioFormatWAV
	case "pcm", "pcm16", "raw":
		return AudioFormatPCM16
	case "mpeg", "mpga":
		return AudioFormatMP3
	case "mp4":
		return AudioFormatM4A
	default:
		return AudioFormat(f)
	}
}

// IsContainerWAV reports whether assembly should treat chunks as WAV files
// (with raw PCM fallback) rather than joining bytes.
func (f AudioFormat) IsContainerWAV() bool {
	return f == AudioFormatWAV || f == AudioFormatPCM16
}

// MIMEType returns the media type used when audio is handed to a model API.
func (f AudioFormat) MIMEType() string {
	switch f {
	case AudioFormatWAV, AudioFormatPCM16:
		return "audio/wav"
	case AudioFormatMP3:
		return "audio/mpeg"
	case AudioFormatFLAC:
		return "audio/flac"
	case AudioFormatM4A:
		return "audio/mp4"
	case AudioFormatOGG:
		return "audio/ogg"
	case AudioFormatWebM:
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

// VoiceInput is an immutable audio payload plus its format metadata.
type VoiceInput struct {
	data       []byte
	format     AudioFormat
	sampleRate int
	channels   int
	name       string
}

// NewVoiceInput copies data so later mutation by the caller cannot leak in.
func NewVoiceInput(data []byte, format AudioFormat, sampleRate, channels int, name string) VoiceInput {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	if format == "" {
		format = AudioFormatWAV
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return VoiceInput{
		data:       buf,
		format:     format,
		sampleRate: sampleRate,
		channels:   channels,
		name:       name,
	}
}

// Data returns a copy of the audio bytes.
func (v VoiceInput) Data() []byte {
	buf := make([]byte, len(v.data))
	copy(buf, v.data)
	return buf
}

func (v VoiceInput) Len() int            { return len(v.data) }
func (v VoiceInput) Format() AudioFormat { return v.format }
func (v VoiceInput) SampleRate() int     { return v.sampleRate }
func (v VoiceInput) Channels() int       { return v.channels }
func (v VoiceInput) Name() string        { return v.name }

// MIMEType returns the media type of the payload.
func (v VoiceInput) MIMEType() string {
	return v.format.MIMEType()
}

// Validate checks that the input carries audio
func (v VoiceInput) Validate() error {
	if len(v.data) == 0 {
		return ErrEmptyBuffer
	}
	return nil
}
