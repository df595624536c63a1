package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with code",
			err:  Transport(503, "GET %s failed", "https://example.com/bq.zip"),
			want: "transport error (code 503): GET https://example.com/bq.zip failed",
		},
		{
			name: "without code",
			err:  NotFound("no member matching %s*.txt", "bq"),
			want: "not_found error: no member matching bq*.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeFormat, TypeOf(Format("bad date")))
	assert.Equal(t, ErrorTypePrecondition, TypeOf(Precondition("missing snapshot")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("plain error")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(nil))
}

func TestTypeOfWrapped(t *testing.T) {
	inner := SizeThreshold("zip too small (%d bytes)", 50)
	wrapped := fmt.Errorf("archive stage: %w", inner)

	assert.Equal(t, ErrorTypeSizeThreshold, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeSizeThreshold))
	assert.False(t, IsType(wrapped, ErrorTypeTransport))
}
