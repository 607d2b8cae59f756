package qr

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPNG(t *testing.T) {
	r := New("attendance://checkin?token=", 128)
	out, err := r.Render("abc.def.ghi")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG\r\n\x1a\n")))
}

func TestContentEscapesToken(t *testing.T) {
	r := New("attendance://checkin?token=", 0)
	assert.Equal(t, 256, r.Size)
	assert.Equal(t, "attendance://checkin?token=a%2Bb%3D", r.Content("a+b="))
}
