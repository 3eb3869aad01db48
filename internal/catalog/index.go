package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type indexEntry[T any] struct {
	Key   string
	Value T
}

// encodeIndex renders {"entries": {...}} with keys in slice order. The
// standard map encoder sorts keys, which would lose recency order.
func encodeIndex[T any](entries []indexEntry[T]) ([]byte, error) {
	var raw bytes.Buffer
	raw.WriteString(`{"entries":{`)
	for i, entry := range entries {
		if i > 0 {
			raw.WriteByte(',')
		}
		key, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", entry.Key, err)
		}
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal entry %q: %w", entry.Key, err)
		}
		raw.Write(key)
		raw.WriteByte(':')
		raw.Write(value)
	}
	raw.WriteString(`}}`)

	var out bytes.Buffer
	if err := json.Indent(&out, raw.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent index: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// decodeIndex reads the entries object preserving document order. Unknown
// top-level keys are ignored; duplicate entry keys keep the first occurrence.
func decodeIndex[T any](data []byte) ([]indexEntry[T], error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var entries []indexEntry[T]
	seen := make(map[string]struct{})
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if key != "entries" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("skip %q: %w", key, err)
			}
			continue
		}
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read entries: %w", err)
		}
		if tok == nil {
			continue
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return nil, fmt.Errorf("entries must be an object, got %v", tok)
		}
		for dec.More() {
			id, err := readKey(dec)
			if err != nil {
				return nil, err
			}
			var value T
			if err := dec.Decode(&value); err != nil {
				return nil, fmt.Errorf("decode entry %q: %w", id, err)
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			entries = append(entries, indexEntry[T]{Key: id, Value: value})
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return entries, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("read key: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
