package llm

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
)

var (
	_ repositories.LargeLanguageModel = &GeminiLLM{}
	_ repositories.LargeLanguageModel = &MockLLM{}
	_ repositories.TextToText         = &TextToText{}
	_ repositories.SpeechToSpeech     = &SpeechToSpeech{}
)

type recordingLLM struct {
	reply    string
	err      error
	requests []repositories.CompletionRequest
}

func (r *recordingLLM) Complete(ctx context.Context, req repositories.CompletionRequest) (string, error) {
	r.requests = append(r.requests, req)
	return r.reply, r.err
}

func (r *recordingLLM) Transcribe(ctx context.Context, req repositories.TranscriptionRequest) (string, error) {
	return "", errors.New("not used")
}

func TestTextToText_BuildsMessages(t *testing.T) {
	backend := &recordingLLM{reply: "  nice to meet you  "}
	ttt := NewTextToText(backend, ResponderConfig{}, zaptest.NewLogger(t))

	history := entities.NewConversationHistory("c1")
	history.AddUser("hi")
	history.AddAssistant("hello")

	reply, err := ttt.Respond(context.Background(), "my name is Ana", history)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if reply != "nice to meet you" {
		t.Errorf("Expected trimmed reply, got %q", reply)
	}

	msgs := backend.requests[0].Messages
	wantRoles := []entities.MessageRole{
		entities.MessageRoleSystem,
		entities.MessageRoleUser,
		entities.MessageRoleAssistant,
		entities.MessageRoleUser,
	}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("Expected %d messages, got %d", len(wantRoles), len(msgs))
	}
	for i, role := range wantRoles {
		if msgs[i].Role != role {
			t.Errorf("Message %d: expected %s, got %s", i, role, msgs[i].Role)
		}
	}
	if msgs[3].Content != "my name is Ana" {
		t.Errorf("Expected last message to be the user text, got %q", msgs[3].Content)
	}
}

func TestTextToText_Errors(t *testing.T) {
	tests := []struct {
		name    string
		backend *recordingLLM
	}{
		{"empty reply", &recordingLLM{reply: "   "}},
		{"backend failure", &recordingLLM{err: errors.New("quota exceeded")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttt := NewTextToText(tt.backend, ResponderConfig{}, zaptest.NewLogger(t))
			_, err := ttt.Respond(context.Background(), "hi", nil)
			if !errors.Is(err, entities.ErrGeneration) {
				t.Errorf("Expected ErrGeneration, got %v", err)
			}
		})
	}
}

func TestSpeechToSpeech_AttachesDetectedAudio(t *testing.T) {
	backend := &recordingLLM{reply: "great question"}
	sts := NewSpeechToSpeech(backend, ResponderConfig{}, zaptest.NewLogger(t))

	mp3 := []byte("ID3\x04\x00\x00\x00\x00")
	input := entities.NewVoiceInput(mp3, entities.AudioFormatWAV, 16000, 1, "")

	reply, err := sts.RespondFromAudio(context.Background(), input, nil, "ko")
	if err != nil {
		t.Fatalf("RespondFromAudio failed: %v", err)
	}
	if reply != "great question" {
		t.Errorf("Unexpected reply %q", reply)
	}

	msgs := backend.requests[0].Messages
	last := msgs[len(msgs)-1]
	if last.Audio == nil {
		t.Fatal("Expected audio on the last message")
	}
	if last.Audio.Format() != entities.AudioFormatMP3 {
		t.Errorf("Expected detected mp3, got %s", last.Audio.Format())
	}
	if last.Content != "" {
		t.Errorf("Expected no transcript text, got %q", last.Content)
	}
}

func TestSpeechToSpeech_EmptyAudio(t *testing.T) {
	backend := &recordingLLM{reply: "x"}
	sts := NewSpeechToSpeech(backend, ResponderConfig{}, zaptest.NewLogger(t))

	_, err := sts.RespondFromAudio(context.Background(), entities.NewVoiceInput(nil, "", 0, 0, ""), nil, "ko")
	if !errors.Is(err, entities.ErrEmptyBuffer) {
		t.Errorf("Expected ErrEmptyBuffer, got %v", err)
	}
	if len(backend.requests) != 0 {
		t.Error("Backend should not be called for empty audio")
	}
}

func TestToGeminiContents_FoldsSystem(t *testing.T) {
	voice := entities.NewVoiceInput([]byte{1, 2}, entities.AudioFormatWAV, 0, 0, "")
	system, contents := toGeminiContents([]repositories.ChatMessage{
		{Role: entities.MessageRoleSystem, Content: "be nice"},
		{Role: entities.MessageRoleSystem, Content: "be brief"},
		{Role: entities.MessageRoleUser, Content: "hi"},
		{Role: entities.MessageRoleAssistant, Content: "hello"},
		{Role: entities.MessageRoleUser, Audio: &voice},
		{Role: entities.MessageRoleUser},
	})

	if system != "be nice\n\nbe brief" {
		t.Errorf("Unexpected system instruction %q", system)
	}
	if len(contents) != 3 {
		t.Fatalf("Expected 3 contents, got %d", len(contents))
	}
	if contents[1].Role != "model" {
		t.Errorf("Expected model role, got %s", contents[1].Role)
	}
	if contents[2].Parts[0].InlineData == nil {
		t.Error("Expected inline audio data")
	}
}

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{"valid", GeminiConfig{APIKey: "k"}, false},
		{"missing key", GeminiConfig{}, true},
		{"bad temperature", GeminiConfig{APIKey: "k", Temperature: 3}, true},
		{"bad topP", GeminiConfig{APIKey: "k", TopP: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateGeminiConfig(tt.config); (err != nil) != tt.wantErr {
				t.Errorf("ValidateGeminiConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
