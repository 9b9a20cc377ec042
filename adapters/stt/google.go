package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/internal/audio"
)

// recognizer is the part of speech.Client used for transcription
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client recognizer
	logger *zap.Logger
}

// NewGoogleSpeechToText creates a client using application default credentials
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Transcribe implements repositories.SpeechToText
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, input entities.VoiceInput, language string) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	data := input.Data()
	format := audio.DetectFormat(data)
	encoding, err := getAudioEncoding(format)
	if err != nil {
		return "", fmt.Errorf("%w: %w", entities.ErrTranscription, err)
	}

	config := &speechpb.RecognitionConfig{
		Encoding:          encoding,
		LanguageCode:      languageCode(language),
		AudioChannelCount: int32(input.Channels()),
	}
	// WAV and FLAC headers carry the rate
	if format != entities.AudioFormatWAV && format != entities.AudioFormatFLAC {
		config.SampleRateHertz = int32(input.SampleRate())
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: config,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", entities.ErrTranscription, err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			parts = append(parts, alts[0].GetTranscript())
		}
	}
	transcript := strings.TrimSpace(strings.Join(parts, " "))
	if transcript == "" {
		return "", entities.ErrEmptyTranscription
	}

	g.logger.Info("Transcription completed",
		zap.String("language", config.LanguageCode),
		zap.Int("audioBytes", len(data)),
		zap.String("transcription", transcript))
	return transcript, nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// getAudioEncoding converts a detected format to the Google Speech API enum
func getAudioEncoding(format entities.AudioFormat) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch format {
	case entities.AudioFormatWAV, entities.AudioFormatPCM16:
		return speechpb.RecognitionConfig_LINEAR16, nil
	case entities.AudioFormatFLAC:
		return speechpb.RecognitionConfig_FLAC, nil
	case entities.AudioFormatMP3:
		return speechpb.RecognitionConfig_MP3, nil
	case entities.AudioFormatOGG:
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case entities.AudioFormatWebM:
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio format: %s", format)
	}
}

var regionDefaults = map[string]string{
	"ko": "ko-KR",
	"en": "en-US",
	"ja": "ja-JP",
	"id": "id-ID",
	"zh": "zh-CN",
}

// languageCode expands a bare language to the BCP-47 tag the API expects
func languageCode(language string) string {
	if language == "" {
		return "ko-KR"
	}
	if tag, ok := regionDefaults[strings.ToLower(language)]; ok {
		return tag
	}
	return language
}
