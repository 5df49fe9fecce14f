// Package llmutils provides small helpers for preparing and cleaning
// JSON payloads exchanged with model runtimes.
package llmutils

import (
	"bytes"
	"encoding/json"
)

// CleanJSON extracts the JSON document from a model response by trimming any
// prose before the first opening brace or bracket and after the last closing
// one, since models often reply like "Here you go: {json}".
func CleanJSON(bs []byte) []byte {
	return trimPostfixAfterJSON(trimPrefixBeforeJSON(bs))
}

func trimPrefixBeforeJSON(bs []byte) []byte {
	startObject := bytes.IndexByte(bs, '{')
	startArray := bytes.IndexByte(bs, '[')

	var start int
	switch {
	case startObject == -1 && startArray == -1:
		return bs
	case startObject == -1:
		start = startArray
	case startArray == -1:
		start = startObject
	default:
		start = min(startObject, startArray)
	}
	return bs[start:]
}

func trimPostfixAfterJSON(bs []byte) []byte {
	endObject := bytes.LastIndexByte(bs, '}')
	endArray := bytes.LastIndexByte(bs, ']')

	var end int
	switch {
	case endObject == -1 && endArray == -1:
		return bs
	case endObject == -1:
		end = endArray
	case endArray == -1:
		end = endObject
	default:
		end = max(endObject, endArray)
	}
	return bs[:end+1]
}

// ToJSON returns the compact JSON encoding of the value.
func ToJSON(val any) string {
	bs, _ := json.Marshal(val)
	return string(bs)
}

// ToJSONIndent returns the indented JSON encoding of the value.
func ToJSONIndent(val any) string {
	bs, _ := json.MarshalIndent(val, "", "  ")
	return string(bs)
}

// BackticksJSON wraps a JSON string into a fenced code block for prompts.
func BackticksJSON(js string) string {
	return "```json\n" + js + "\n```"
}
