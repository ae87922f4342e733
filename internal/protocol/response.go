package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Response is either a success carrying a result or a failure carrying a
// human-readable message. Build it with Succeed or Fail.
type Response struct {
	Success   bool
	Result    json.RawMessage
	Error     string
	Timestamp time.Time
}

// Succeed wraps result into a success response stamped with the current UTC time.
func Succeed(result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("encode result: %w", err)
	}
	return Response{Success: true, Result: raw, Timestamp: now()}, nil
}

// Fail builds an error response stamped with the current UTC time.
func Fail(message string) Response {
	if message == "" {
		message = "unknown error"
	}
	return Response{Success: false, Error: message, Timestamp: now()}
}

// Failf is Fail with formatting.
func Failf(format string, args ...any) Response {
	return Fail(fmt.Sprintf(format, args...))
}

func now() time.Time {
	return time.Now().UTC()
}

// DecodeResult decodes a success response's result into the expected shape.
// Results that implement Validate are validated after decoding.
func DecodeResult[T any](resp Response) (T, error) {
	var out T
	if !resp.Success {
		return out, newDecodeError(ErrShapeMismatch, "response is not a success", nil)
	}
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		return out, newDecodeError(ErrShapeMismatch, fmt.Sprintf("result is not %T", out), err)
	}
	if v, ok := any(out).(validator); ok {
		if err := v.Validate(); err != nil {
			return out, newDecodeError(ErrShapeMismatch, "invalid result", err)
		}
	}
	return out, nil
}
