package parse

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"
)

// Typed parse failures. ErrUnsupportedFormat means no parser recognized the
// input structurally; ErrNoMessagesFound means a parser matched but yielded
// zero usable messages.
var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrNoMessagesFound   = errors.New("no messages found in export")
)

// Parse detects the export format of raw file data and produces normalized
// conversations. Parsers are tried in a fixed priority order because the
// formats structurally overlap; the first structural match wins.
func Parse(data []byte, filename string) ([]Conversation, error) {
	if isZip(data, filename) {
		inner, err := unwrapZip(data)
		if err != nil {
			return nil, err
		}
		data = inner
	}

	trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace)
	if len(trimmed) == 0 {
		return nil, ErrNoMessagesFound
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		return parseJSON(trimmed)
	}

	// Newline-delimited JSON: every non-blank line is its own object.
	if looksLikeNDJSON(trimmed) {
		if convs, ok := parseNDJSON(trimmed); ok {
			return finalizeOrErr(convs)
		}
	}

	return parsePlainText(string(data))
}

// parseJSON runs the JSON parser chain against a decoded document.
func parseJSON(data []byte) ([]Conversation, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		// Malformed as a single document; may still be NDJSON.
		if convs, ok := parseNDJSON(data); ok {
			return finalizeOrErr(convs)
		}
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrUnsupportedFormat, err)
	}

	if detectTree(doc) {
		return finalizeOrErr(parseTree(doc))
	}
	if detectFlatTurns(doc) {
		return finalizeOrErr(parseFlatTurns(doc))
	}
	if detectFlatMessages(doc) {
		return finalizeOrErr(parseFlatMessages(doc))
	}
	if rows, ok := findMessageArray(doc); ok {
		return finalizeOrErr(parseGeneric(rows))
	}

	return nil, ErrUnsupportedFormat
}

func finalizeOrErr(convs []Conversation) ([]Conversation, error) {
	convs = finalize(convs)
	if len(convs) == 0 {
		return nil, ErrNoMessagesFound
	}
	return convs, nil
}

func isZip(data []byte, filename string) bool {
	if strings.EqualFold(path.Ext(filename), ".zip") {
		return true
	}
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("PK\x03\x04"))
}

// unwrapZip extracts the conversation document from a zip-wrapped export.
// The exporter ships a conversations.json at the archive root; if absent, the
// largest .json entry is taken.
func unwrapZip(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: bad zip archive: %v", ErrUnsupportedFormat, err)
	}

	var best *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ".json") {
			continue
		}
		if path.Base(strings.ToLower(f.Name)) == "conversations.json" {
			best = f
			break
		}
		if best == nil || f.UncompressedSize64 > best.UncompressedSize64 {
			best = f
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: zip contains no JSON document", ErrUnsupportedFormat)
	}

	rc, err := best.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %s: %w", best.Name, err)
	}
	defer rc.Close()

	inner, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read zip entry %s: %w", best.Name, err)
	}
	return inner, nil
}

func looksLikeNDJSON(data []byte) bool {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	line = bytes.TrimSpace(line)
	return len(line) > 0 && line[0] == '{'
}

// parseNDJSON treats each non-blank line as one flat-message object. Lines
// that fail to decode are skipped, mirroring the main parsers' policy of
// dropping malformed rows silently.
func parseNDJSON(data []byte) ([]Conversation, bool) {
	var rows []any
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			continue
		}
		rows = append(rows, obj)
	}
	if len(rows) == 0 {
		return nil, false
	}

	if detectFlatMessages(rows) {
		return parseFlatMessages(rows), true
	}
	return parseGeneric(rows), true
}
