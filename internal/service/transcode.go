package service

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"api-gateway-go/internal/model"
)

// Transcode decides how an upstream body is represented to the client.
// Backends are not trusted to label content accurately, so JSON requires
// both the declared type and a leading '{' or '['. It never fails: malformed
// JSON degrades to text and invalid UTF-8 to lowercase hex.
func Transcode(contentType string, raw []byte) model.ClientBody {
	if len(raw) == 0 {
		return model.ClientBody{Kind: model.BodyAbsent}
	}
	if !utf8.Valid(raw) {
		return model.ClientBody{Kind: model.BodyHex, Hex: hex.EncodeToString(raw)}
	}

	text := string(raw)
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var buf bytes.Buffer
			if err := json.Compact(&buf, []byte(trimmed)); err == nil {
				return model.ClientBody{Kind: model.BodyJSON, JSON: buf.Bytes()}
			}
		}
	}
	return model.ClientBody{Kind: model.BodyText, Text: text}
}

// Respond builds the client response for a successful forward.
func Respond(up *model.Upstream) *model.ClientResponse {
	return &model.ClientResponse{
		StatusCode: up.StatusCode,
		Header:     FilterResponseHeaders(up.Header),
		Body:       Transcode(up.Header.Get("Content-Type"), up.Body),
	}
}
