// Package qr renders credential payloads as PNG QR codes.
package qr

import (
	"encoding/base64"
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

// Renderer encodes a deep link carrying the token into a base64 PNG.
type Renderer struct {
	DeepLinkPrefix string
	Size           int
}

// New builds a renderer; a non-positive size falls back to 256 pixels.
func New(deepLinkPrefix string, size int) Renderer {
	if size <= 0 {
		size = 256
	}
	return Renderer{DeepLinkPrefix: deepLinkPrefix, Size: size}
}

// Content is the text embedded in the QR code.
func (r Renderer) Content(token string) string {
	return r.DeepLinkPrefix + url.QueryEscape(token)
}

// Render returns the PNG image as standard base64.
func (r Renderer) Render(token string) (string, error) {
	png, err := qrcode.Encode(r.Content(token), qrcode.Low, r.Size)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
