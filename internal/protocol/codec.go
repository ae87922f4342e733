package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Delimiter terminates every encoded message on the wire.
const Delimiter = '\n'

var (
	ErrMalformed     = errors.New("malformed message")
	ErrUnknownTag    = errors.New("unknown call type")
	ErrShapeMismatch = errors.New("payload does not match call type")
	ErrMissingField  = errors.New("missing required field")
)

// DecodeError reports why a frame could not be decoded. It matches one of
// the Err* sentinels with errors.Is.
type DecodeError struct {
	Kind   error
	Detail string
	Err    error
}

func newDecodeError(kind error, detail string, err error) *DecodeError {
	return &DecodeError{Kind: kind, Detail: detail, Err: err}
}

func (e *DecodeError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

type wireCall struct {
	Type   *Tag            `json:"type"`
	Params json.RawMessage `json:"params"`
}

type wirePixelParams struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

type wireResponse struct {
	Success   *bool           `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *string         `json:"error,omitempty"`
	Timestamp *time.Time      `json:"timestamp"`
}

// EncodeCall renders call as one delimited JSON object.
func EncodeCall(call Call) ([]byte, error) {
	if call == nil {
		return nil, errors.New("encode call: nil call")
	}
	tag := call.Tag()
	msg := wireCall{Type: &tag, Params: json.RawMessage("null")}
	if pixel, ok := call.(GetPixelColor); ok {
		params, err := json.Marshal(pixel)
		if err != nil {
			return nil, fmt.Errorf("encode call params: %w", err)
		}
		msg.Params = params
	}
	return encodeLine(msg)
}

// EncodeResponse renders resp as one delimited JSON object.
func EncodeResponse(resp Response) ([]byte, error) {
	success := resp.Success
	ts := resp.Timestamp.UTC()
	msg := wireResponse{Success: &success, Timestamp: &ts}
	if success {
		if len(resp.Result) == 0 {
			return nil, errors.New("encode response: success without result")
		}
		msg.Result = resp.Result
	} else {
		errText := resp.Error
		msg.Error = &errText
	}
	return encodeLine(msg)
}

func encodeLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	// json.Encoder terminates with '\n', which is the wire delimiter.
	return buf.Bytes(), nil
}

// DecodeCall parses one frame (without its delimiter) into a Call.
func DecodeCall(frame []byte) (Call, error) {
	var msg wireCall
	if err := decodeStrict(frame, &msg); err != nil {
		return nil, err
	}
	if msg.Type == nil {
		return nil, newDecodeError(ErrMissingField, "type", nil)
	}

	switch *msg.Type {
	case TagGetMonitorParams:
		return parameterless(GetMonitorParams{}, msg.Params)
	case TagGetProcessID:
		return parameterless(GetProcessID{}, msg.Params)
	case TagGetThreadCount:
		return parameterless(GetThreadCount{}, msg.Params)
	case TagGetPixelColor:
		if isNull(msg.Params) {
			return nil, newDecodeError(ErrMissingField, "params", nil)
		}
		var params wirePixelParams
		if err := decodeStrict(msg.Params, &params); err != nil {
			return nil, err
		}
		if params.X == nil {
			return nil, newDecodeError(ErrMissingField, "params.x", nil)
		}
		if params.Y == nil {
			return nil, newDecodeError(ErrMissingField, "params.y", nil)
		}
		return GetPixelColor{X: *params.X, Y: *params.Y}, nil
	default:
		return nil, newDecodeError(ErrUnknownTag, fmt.Sprintf("%q", string(*msg.Type)), nil)
	}
}

// DecodeResponse parses one frame (without its delimiter) into a Response
// and checks that the success flag agrees with the payload.
func DecodeResponse(frame []byte) (Response, error) {
	var msg wireResponse
	if err := decodeStrict(frame, &msg); err != nil {
		return Response{}, err
	}
	if msg.Success == nil {
		return Response{}, newDecodeError(ErrMissingField, "success", nil)
	}
	if msg.Timestamp == nil {
		return Response{}, newDecodeError(ErrMissingField, "timestamp", nil)
	}

	resp := Response{Success: *msg.Success, Timestamp: msg.Timestamp.UTC()}
	if resp.Success {
		if isNull(msg.Result) {
			return Response{}, newDecodeError(ErrMissingField, "result", nil)
		}
		if msg.Error != nil {
			return Response{}, newDecodeError(ErrShapeMismatch, "success response carries error", nil)
		}
		resp.Result = msg.Result
		return resp, nil
	}

	if msg.Error == nil || strings.TrimSpace(*msg.Error) == "" {
		return Response{}, newDecodeError(ErrMissingField, "error", nil)
	}
	if !isNull(msg.Result) {
		return Response{}, newDecodeError(ErrShapeMismatch, "error response carries result", nil)
	}
	resp.Error = *msg.Error
	return resp, nil
}

func parameterless(call Call, params json.RawMessage) (Call, error) {
	if !isNull(params) {
		return nil, newDecodeError(ErrShapeMismatch, fmt.Sprintf("%s takes no params", call.Tag()), nil)
	}
	return call, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr):
			return newDecodeError(ErrShapeMismatch, typeErr.Field, err)
		case strings.HasPrefix(err.Error(), "json: unknown field"):
			return newDecodeError(ErrShapeMismatch, "", err)
		default:
			return newDecodeError(ErrMalformed, "", err)
		}
	}
	if _, err := dec.Token(); err != io.EOF {
		return newDecodeError(ErrMalformed, "trailing data after message", nil)
	}
	return nil
}
