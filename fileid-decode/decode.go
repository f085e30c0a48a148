package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	ansicolor "github.com/fatih/color"
)

const separator = "/@#@/"

// markers are stripped from the highest index down. An empty slot is skipped.
var markers = [5]string{
	"%?6497.[:4",
	"=(=:19705/",
	":]&*1@@1=&",
	"33-*.4/9[6",
	"*,4).(_)()",
}

var defaultPatterns = stripPatterns(markers)

var (
	errMalformedUTF8 = errors.New("malformed utf-8 sequence")

	colorError = ansicolor.New(ansicolor.FgRed)
)

type stripPattern struct {
	index   int
	marker  string
	pattern string
}

type stripStep struct {
	Index   int    `yaml:"index"`
	Marker  string `yaml:"marker"`
	Pattern string `yaml:"pattern"`
	Removed int    `yaml:"removed"`
}

type report struct {
	Encoded  string      `yaml:"encoded"`
	Payload  string      `yaml:"payload"`
	Stripped []stripStep `yaml:"stripped"`
	Decoded  string      `yaml:"decoded"`
	Error    string      `yaml:"error,omitempty"`
	Page     *pageSource `yaml:"page,omitempty"`
}

func stripPatterns(ms [5]string) []stripPattern {
	var out []stripPattern
	for i := len(ms) - 1; i >= 0; i-- {
		if ms[i] == "" {
			continue
		}
		out = append(out, stripPattern{
			index:   i,
			marker:  ms[i],
			pattern: separator + encodeMarker(ms[i]),
		})
	}
	return out
}

// encodeMarker percent-escapes the marker, reads every escape back as the raw
// byte it names and base64 encodes the result. Those raw bytes are exactly the
// UTF-8 encoding of the marker.
func encodeMarker(marker string) string {
	return base64.StdEncoding.EncodeToString([]byte(marker))
}

// decode returns the plaintext file id, or "" if the payload does not decode.
// The failure is reported on diag.
func decode(diag io.Writer, encoded string) string {
	return inspect(diag, encoded).Decoded
}

func inspect(diag io.Writer, encoded string) report {
	payload, steps := stripMarkers(dropPrefix(encoded), defaultPatterns)
	rep := report{
		Encoded:  encoded,
		Payload:  payload,
		Stripped: steps,
	}

	decoded, err := decodePayload(payload)
	if err != nil {
		colorError.Fprintf(diag, "Err: %v\n", err)
		rep.Error = err.Error()
		return rep
	}

	rep.Decoded = decoded
	return rep
}

// dropPrefix discards the two character format tag.
func dropPrefix(s string) string {
	for i := 0; i < 2 && s != ""; i++ {
		_, size := utf8.DecodeRuneInString(s)
		s = s[size:]
	}
	return s
}

// stripMarkers removes every occurrence of each pattern, one pass per pattern.
// Occurrences formed by a removal are left in place.
func stripMarkers(buf string, patterns []stripPattern) (string, []stripStep) {
	steps := make([]stripStep, 0, len(patterns))
	for _, p := range patterns {
		n := strings.Count(buf, p.pattern)
		if n > 0 {
			buf = strings.ReplaceAll(buf, p.pattern, "")
		}
		steps = append(steps, stripStep{
			Index:   p.index,
			Marker:  p.marker,
			Pattern: p.pattern,
			Removed: n,
		})
	}
	return buf, steps
}

func decodePayload(payload string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("base64: %w", err)
	}

	s, err := percentDecode(percentEscape(raw))
	if err != nil {
		return "", fmt.Errorf("uri: %w", err)
	}
	return s, nil
}

func percentEscape(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw) * 3)
	for _, c := range raw {
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

// percentDecode behaves like a URI component decode: '+' stays literal and the
// unescaped bytes must form valid UTF-8.
func percentDecode(s string) (string, error) {
	out, err := url.PathUnescape(s)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(out) {
		return "", errMalformedUTF8
	}
	return out, nil
}
