package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorString(t *testing.T) {
	err := New(CodeDecodeFailed, "bad png").WithMetadata("op", "init_pixel_buffer")
	want := "[DECODE_FAILED] bad png map[op:init_pixel_buffer]"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, CodeInternal, "render")
	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match cause")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return cause")
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", New(CodeChannelUnavailable, "no worker"))
	if !IsCode(err, CodeChannelUnavailable) {
		t.Error("IsCode should see through fmt wrapping")
	}
	if IsCode(err, CodeDecodeFailed) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(stderrors.New("plain"), CodeUnknown) {
		t.Error("plain errors carry no code")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(CodeUnavailable, "x"), true},
		{New(CodeTimeout, "x"), true},
		{New(CodeDecodeFailed, "x"), false},
		{stderrors.New("x"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestGRPCRoundTrip(t *testing.T) {
	orig := Newf(CodeCodecUnavailable, "codec not loaded for %s", "decode").
		WithMetadata("bytes", "1024")

	st := orig.GRPCStatus()
	if st.Code() != codes.FailedPrecondition {
		t.Errorf("grpc code = %v, want FailedPrecondition", st.Code())
	}

	got := FromGRPCError(st.Err())
	if got.Code != CodeCodecUnavailable {
		t.Errorf("Code = %v, want %v", got.Code, CodeCodecUnavailable)
	}
	if got.Message != orig.Message {
		t.Errorf("Message = %q, want %q", got.Message, orig.Message)
	}
	if got.Metadata["bytes"] != "1024" {
		t.Errorf("metadata lost: %v", got.Metadata)
	}
}

func TestFromGRPCErrorWithoutDetail(t *testing.T) {
	got := FromGRPCError(status.Error(codes.Unavailable, "connection refused"))
	if got.Code != CodeUnavailable {
		t.Errorf("Code = %v, want %v", got.Code, CodeUnavailable)
	}
	if FromGRPCError(nil) != nil {
		t.Error("nil error should map to nil")
	}
	if plain := FromGRPCError(stderrors.New("x")); plain.Code != CodeUnknown {
		t.Errorf("plain error code = %v, want UNKNOWN", plain.Code)
	}
}

func TestCodeString(t *testing.T) {
	if CodeChannelUnavailable.String() != "CHANNEL_UNAVAILABLE" {
		t.Errorf("String() = %q", CodeChannelUnavailable.String())
	}
	if Code(99).String() != "CODE_99" {
		t.Errorf("unknown code String() = %q", Code(99).String())
	}
}
