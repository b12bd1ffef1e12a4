package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Turn and result coercion. The write boundary is deliberately permissive:
// older releases stored turn/result as booleans, words, or localized
// Japanese tokens, and CSV backups may still contain any of them. Encoding
// (input → canonical int) is fallible; decoding (stored value → semantic
// form) is total and falls back to a safe default, because legacy data must
// never make a read path error out.

// turnTokens maps accepted string encodings to the canonical turn value.
var turnTokens = map[string]int{
	"1": 1, "true": 1, "first": 1, "先攻": 1,
	"0": 0, "false": 0, "second": 0, "後攻": 0,
}

// resultTokens maps accepted string encodings to the canonical result value.
var resultTokens = map[string]int{
	"win": 1, "victory": 1, "勝ち": 1, "1": 1,
	"lose": -1, "loss": -1, "敗北": -1, "負け": -1, "-1": -1,
	"draw": 0, "引き分け": 0, "0": 0,
}

// EncodeTurn converts any accepted turn representation to 0 or 1.
func EncodeTurn(v any) (int, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case int:
		return boolToTurn(t != 0), nil
	case int64:
		return boolToTurn(t != 0), nil
	case float64:
		return boolToTurn(t != 0), nil
	case string:
		if n, ok := turnTokens[strings.ToLower(strings.TrimSpace(t))]; ok {
			return n, nil
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return boolToTurn(n != 0), nil
		}
	}
	return 0, fmt.Errorf("unrecognized turn value %q", fmt.Sprint(v))
}

func boolToTurn(first bool) int {
	if first {
		return 1
	}
	return 0
}

// EncodeResult converts any accepted result representation to -1, 0 or 1.
func EncodeResult(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return intResult(int64(t))
	case int64:
		return intResult(t)
	case float64:
		return intResult(int64(t))
	case string:
		if n, ok := resultTokens[strings.ToLower(strings.TrimSpace(t))]; ok {
			return n, nil
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return intResult(n)
		}
	}
	return 0, fmt.Errorf("unrecognized result value %q", fmt.Sprint(v))
}

func intResult(n int64) (int, error) {
	if n < -1 || n > 1 {
		return 0, fmt.Errorf("result out of range: %d", n)
	}
	return int(n), nil
}

// DecodeTurn converts a stored or foreign turn value to its semantic form
// (true = went first). Total: unrecognized values decode to false.
func DecodeTurn(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		if n, ok := turnTokens[strings.ToLower(strings.TrimSpace(t))]; ok {
			return n == 1
		}
	}
	return false
}

// DecodeResult converts a stored or foreign result value to -1, 0 or 1.
// Total: unrecognized values decode to 0 (draw).
func DecodeResult(v any) int {
	switch t := v.(type) {
	case int:
		if t >= -1 && t <= 1 {
			return t
		}
	case int64:
		if t >= -1 && t <= 1 {
			return int(t)
		}
	case float64:
		if t >= -1 && t <= 1 {
			return int(t)
		}
	case string:
		if n, ok := resultTokens[strings.ToLower(strings.TrimSpace(t))]; ok {
			return n
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil && n >= -1 && n <= 1 {
			return int(n)
		}
	}
	return 0
}

// EncodeKeywordList serializes keyword identifiers to the JSON TEXT column
// form. A nil slice encodes as the empty array, never as "null".
func EncodeKeywordList(identifiers []string) string {
	if identifiers == nil {
		identifiers = []string{}
	}
	b, err := json.Marshal(identifiers)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeKeywordList parses the JSON TEXT column back to identifiers.
// Total: malformed JSON decodes to an empty list.
func DecodeKeywordList(stored string) []string {
	if strings.TrimSpace(stored) == "" {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(stored), &ids); err != nil {
		return []string{}
	}
	return ids
}
