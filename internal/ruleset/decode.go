// ABOUTME: Duplicate-key-rejecting JSON decoder built on encoding/json's token stream.
// ABOUTME: Produces the same value shapes as json.Unmarshal into any (map[string]any, []any, float64...).
package ruleset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// decodeStrict parses data as JSON, rejecting any object that declares the
// same key twice at the same nesting level. Value shapes match what
// json.Unmarshal produces for an `any` target, so the result can be fed
// straight into the schema validator.
func decodeStrict(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	// Anything after the first value makes the input not a single document.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON document", ErrInvalidFormat)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		// string, float64, bool, or nil.
		return tok, nil
	}

	switch delim {
	case '{':
		obj := make(map[string]any)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("%w: object key is not a string", ErrInvalidFormat)
			}
			if _, dup := obj[key]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj[key] = val
		}
		if _, err := dec.Token(); err != nil { // consume '}'
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		return obj, nil

	case '[':
		arr := []any{}
		for dec.More() {
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil { // consume ']'
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		return arr, nil

	default:
		return nil, fmt.Errorf("%w: unexpected delimiter %q", ErrInvalidFormat, delim)
	}
}
