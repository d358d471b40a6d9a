// Package protocol defines the wire frames exchanged over a live interview
// session: one duplex stream carrying audio frames, workspace snapshots,
// transcript events, tool invocations and lifecycle signals.
//
// Frames are JSON text messages with a "type" envelope field. The protocol is
// deliberately vendor-neutral: it specifies the four logical event kinds and
// their pairing rules, not any particular provider's encoding.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ProtocolVersion1 = "1"

	// EncodingPCM16LE is the only audio encoding in protocol version 1:
	// 16-bit little-endian PCM, base64-wrapped in JSON frames.
	EncodingPCM16LE = "pcm_s16le"
)

// DecodeError describes a frame that could not be decoded. The session drops
// undecodable frames and continues; a server that keeps sending garbage will
// eventually fail the connection itself.
type DecodeError struct {
	Code    string
	Message string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badFrame(message string) *DecodeError {
	return &DecodeError{Code: "bad_frame", Message: message}
}

// AudioFormat describes the negotiated audio shape for one direction.
type AudioFormat struct {
	Encoding     string `json:"encoding"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Channels     int    `json:"channels"`
}

// ClientHello opens a session. The server answers with hello_ack or error.
type ClientHello struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	System          string      `json:"system,omitempty"`
	AudioIn         AudioFormat `json:"audio_in"`
	AudioOut        AudioFormat `json:"audio_out"`
	Tools           []ToolDecl  `json:"tools,omitempty"`
}

// ToolDecl declares a client-handled function tool to the agent.
type ToolDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ClientAudioFrame carries one captured microphone frame.
type ClientAudioFrame struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq,omitempty"`
	DataB64 string `json:"data_b64"`
}

// ClientImageFrame carries one workspace snapshot.
type ClientImageFrame struct {
	Type    string `json:"type"`
	Mime    string `json:"mime"`
	DataB64 string `json:"data_b64"`
	Version int64  `json:"version,omitempty"`
}

// ClientTextInput injects a synthetic user turn without audio.
type ClientTextInput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ClientToolResult answers one server tool call. Every call id must receive
// exactly one result.
type ClientToolResult struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ClientControl carries session control operations ("end_session").
type ClientControl struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

// ServerHelloAck acknowledges a hello and confirms the session is open.
type ServerHelloAck struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// ServerAudioFrame carries one frame of synthesized agent speech.
type ServerAudioFrame struct {
	Type    string `json:"type"`
	Mime    string `json:"mime"`
	Seq     int64  `json:"seq,omitempty"`
	DataB64 string `json:"data_b64"`
}

// Speaker identifies the side of the conversation a transcript line
// belongs to.
const (
	SpeakerUser  = "user"
	SpeakerAgent = "agent"
)

// ServerTranscript carries one finalized transcript line for either speaker.
type ServerTranscript struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// ToolCall is one named function invocation issued by the agent.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ServerToolCall carries one batch of invocations issued in a single turn.
// The client must answer every id before further audio from that turn.
type ServerToolCall struct {
	Type  string     `json:"type"`
	Calls []ToolCall `json:"calls"`
}

// ServerError reports a session-fatal error before the connection closes.
type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ServerFrame is implemented by every decoded server-to-client frame.
type ServerFrame interface {
	serverFrameType() string
}

func (f ServerHelloAck) serverFrameType() string   { return "hello_ack" }
func (f ServerAudioFrame) serverFrameType() string { return "audio_frame" }
func (f ServerTranscript) serverFrameType() string { return "transcript" }
func (f ServerToolCall) serverFrameType() string   { return "tool_call" }
func (f ServerError) serverFrameType() string      { return "error" }

// DecodeServerFrame decodes one inbound text frame into its typed form.
func DecodeServerFrame(data []byte) (ServerFrame, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badFrame("frame is not valid JSON")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badFrame("frame missing type")
	}

	switch typ {
	case "hello_ack":
		var ack ServerHelloAck
		if err := json.Unmarshal(data, &ack); err != nil {
			return nil, badFrame("decode hello_ack: " + err.Error())
		}
		return ack, nil
	case "audio_frame":
		var frame ServerAudioFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, badFrame("decode audio_frame: " + err.Error())
		}
		if strings.TrimSpace(frame.DataB64) == "" {
			return nil, badFrame("audio_frame missing data_b64")
		}
		return frame, nil
	case "transcript":
		var tr ServerTranscript
		if err := json.Unmarshal(data, &tr); err != nil {
			return nil, badFrame("decode transcript: " + err.Error())
		}
		if tr.Speaker != SpeakerUser && tr.Speaker != SpeakerAgent {
			return nil, badFrame(fmt.Sprintf("transcript speaker %q is not user or agent", tr.Speaker))
		}
		return tr, nil
	case "tool_call":
		var call ServerToolCall
		if err := json.Unmarshal(data, &call); err != nil {
			return nil, badFrame("decode tool_call: " + err.Error())
		}
		if len(call.Calls) == 0 {
			return nil, badFrame("tool_call carries no invocations")
		}
		for _, c := range call.Calls {
			if strings.TrimSpace(c.ID) == "" {
				return nil, badFrame("tool_call invocation missing id")
			}
		}
		return call, nil
	case "error":
		var serr ServerError
		if err := json.Unmarshal(data, &serr); err != nil {
			return nil, badFrame("decode error frame: " + err.Error())
		}
		return serr, nil
	default:
		return nil, badFrame(fmt.Sprintf("unknown server frame type %q", typ))
	}
}

// NewHello builds a ClientHello with the fixed protocol version and the
// standard PCM formats for both directions.
func NewHello(system string, inRate, outRate int, tools []ToolDecl) ClientHello {
	return ClientHello{
		Type:            "hello",
		ProtocolVersion: ProtocolVersion1,
		System:          system,
		AudioIn: AudioFormat{
			Encoding:     EncodingPCM16LE,
			SampleRateHz: inRate,
			Channels:     1,
		},
		AudioOut: AudioFormat{
			Encoding:     EncodingPCM16LE,
			SampleRateHz: outRate,
			Channels:     1,
		},
		Tools: tools,
	}
}
