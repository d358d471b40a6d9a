package protocol

import (
	"testing"
)

func TestDecodeServerFrame_AudioFrame(t *testing.T) {
	frame, err := DecodeServerFrame([]byte(`{"type":"audio_frame","mime":"audio/pcm","seq":3,"data_b64":"AAAA"}`))
	if err != nil {
		t.Fatalf("DecodeServerFrame: %v", err)
	}
	audio, ok := frame.(ServerAudioFrame)
	if !ok {
		t.Fatalf("frame = %T, want ServerAudioFrame", frame)
	}
	if audio.Seq != 3 || audio.DataB64 != "AAAA" {
		t.Fatalf("unexpected frame: %+v", audio)
	}
}

func TestDecodeServerFrame_Transcript(t *testing.T) {
	frame, err := DecodeServerFrame([]byte(`{"type":"transcript","speaker":"agent","text":"tell me about caching"}`))
	if err != nil {
		t.Fatalf("DecodeServerFrame: %v", err)
	}
	tr, ok := frame.(ServerTranscript)
	if !ok {
		t.Fatalf("frame = %T, want ServerTranscript", frame)
	}
	if tr.Speaker != SpeakerAgent {
		t.Errorf("Speaker = %q, want %q", tr.Speaker, SpeakerAgent)
	}
}

func TestDecodeServerFrame_ToolCallBatch(t *testing.T) {
	raw := `{"type":"tool_call","calls":[{"id":"c1","name":"update_stage","args":{"stage":"design"}},{"id":"c2","name":"update_stage"}]}`
	frame, err := DecodeServerFrame([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeServerFrame: %v", err)
	}
	call, ok := frame.(ServerToolCall)
	if !ok {
		t.Fatalf("frame = %T, want ServerToolCall", frame)
	}
	if len(call.Calls) != 2 {
		t.Fatalf("len(Calls) = %d, want 2", len(call.Calls))
	}
	if call.Calls[0].ID != "c1" || call.Calls[1].ID != "c2" {
		t.Fatalf("unexpected call ids: %+v", call.Calls)
	}
}

func TestDecodeServerFrame_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"missing type", `{"text":"hi"}`},
		{"unknown type", `{"type":"telemetry"}`},
		{"audio without data", `{"type":"audio_frame","mime":"audio/pcm"}`},
		{"transcript bad speaker", `{"type":"transcript","speaker":"narrator","text":"x"}`},
		{"tool_call empty batch", `{"type":"tool_call","calls":[]}`},
		{"tool_call missing id", `{"type":"tool_call","calls":[{"name":"f"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeServerFrame([]byte(tt.raw)); err == nil {
				t.Fatalf("DecodeServerFrame(%q) succeeded, want error", tt.raw)
			}
		})
	}
}

func TestNewHello(t *testing.T) {
	hello := NewHello("you are an interviewer", 16000, 24000, nil)
	if hello.Type != "hello" {
		t.Errorf("Type = %q, want hello", hello.Type)
	}
	if hello.ProtocolVersion != ProtocolVersion1 {
		t.Errorf("ProtocolVersion = %q, want %q", hello.ProtocolVersion, ProtocolVersion1)
	}
	if hello.AudioIn.SampleRateHz != 16000 || hello.AudioOut.SampleRateHz != 24000 {
		t.Errorf("sample rates = %d/%d, want 16000/24000", hello.AudioIn.SampleRateHz, hello.AudioOut.SampleRateHz)
	}
	if hello.AudioIn.Encoding != EncodingPCM16LE || hello.AudioIn.Channels != 1 {
		t.Errorf("audio_in = %+v, want pcm_s16le mono", hello.AudioIn)
	}
}
