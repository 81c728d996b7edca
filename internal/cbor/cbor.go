// Package cbor implements the minimal CBOR (RFC 7049/8949) subset the
// cache server's wire protocol requires: unsigned/negative integers,
// byte and text strings (definite and indefinite), arrays, maps, tags,
// and the simple/float family.
package cbor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeError is returned for any malformed or unsupported input.
type DecodeError struct {
	msg string
}

func (e *DecodeError) Error() string { return "cbor: " + e.msg }

func decodeErrorf(format string, args ...any) error {
	return &DecodeError{msg: fmt.Sprintf(format, args...)}
}

// breakMarker is returned internally by decodeValue when it reads a
// major-7/additional-31 "break" stop code inside an indefinite-length
// container.
type breakMarker struct{}

// Encode serializes v into its CBOR representation. Supported types are
// nil, bool, the integer kinds, float32/float64 (always emitted as
// float64), string, []byte, []any, and map[string]any; any other type
// yields an error.
func Encode(v any) ([]byte, error) {
	var out []byte
	var err error
	out, err = encodeValue(nil, v)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func encodeValue(out []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return append(out, 0xF6), nil
	case bool:
		if val {
			return append(out, 0xF5), nil
		}
		return append(out, 0xF4), nil
	case int:
		return encodeInt(out, int64(val)), nil
	case int8:
		return encodeInt(out, int64(val)), nil
	case int16:
		return encodeInt(out, int64(val)), nil
	case int32:
		return encodeInt(out, int64(val)), nil
	case int64:
		return encodeInt(out, val), nil
	case uint:
		return encodeUint(out, 0, uint64(val)), nil
	case uint8:
		return encodeUint(out, 0, uint64(val)), nil
	case uint16:
		return encodeUint(out, 0, uint64(val)), nil
	case uint32:
		return encodeUint(out, 0, uint64(val)), nil
	case uint64:
		return encodeUint(out, 0, val), nil
	case float32:
		return encodeFloat64(out, float64(val)), nil
	case float64:
		return encodeFloat64(out, val), nil
	case string:
		b := []byte(val)
		out = encodeUint(out, 3, uint64(len(b)))
		return append(out, b...), nil
	case []byte:
		out = encodeUint(out, 2, uint64(len(val)))
		return append(out, val...), nil
	case []any:
		out = encodeUint(out, 4, uint64(len(val)))
		var err error
		for _, item := range val {
			out, err = encodeValue(out, item)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case map[string]any:
		out = encodeUint(out, 5, uint64(len(val)))
		var err error
		for k, item := range val {
			out, err = encodeValue(out, k)
			if err != nil {
				return nil, err
			}
			out, err = encodeValue(out, item)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cbor: unsupported type for encoding: %T", v)
	}
}

func encodeInt(out []byte, v int64) []byte {
	if v >= 0 {
		return encodeUint(out, 0, uint64(v))
	}
	return encodeUint(out, 1, uint64(-1-v))
}

func encodeUint(out []byte, major byte, n uint64) []byte {
	switch {
	case n < 24:
		return append(out, (major<<5)|byte(n))
	case n < 256:
		return append(out, (major<<5)|24, byte(n))
	case n < 65536:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(n))
		return append(append(out, (major<<5)|25), buf...)
	case n < 1<<32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(n))
		return append(append(out, (major<<5)|26), buf...)
	default:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n)
		return append(append(out, (major<<5)|27), buf...)
	}
}

func encodeFloat64(out []byte, v float64) []byte {
	out = append(out, 0xFB)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return append(out, buf...)
}

// Decode parses a single top-level CBOR value from data. Any bytes
// remaining after that value is an error, matching the wire contract
// of the cache server (one value per response body).
func Decode(data []byte) (any, error) {
	v, idx, err := decodeValue(data, 0)
	if err != nil {
		return nil, err
	}
	if idx != len(data) {
		return nil, decodeErrorf("trailing bytes after top-level value: %d", len(data)-idx)
	}
	if _, isBreak := v.(breakMarker); isBreak {
		return nil, decodeErrorf("unexpected break at top level")
	}
	return v, nil
}

func decodeValue(data []byte, idx int) (any, int, error) {
	if idx >= len(data) {
		return nil, idx, decodeErrorf("unexpected end of data")
	}
	initial := data[idx]
	idx++
	major := initial >> 5
	addl := initial & 0x1F

	switch major {
	case 0:
		n, next, err := readUint(data, idx, addl)
		if err != nil {
			return nil, idx, err
		}
		return n, next, nil
	case 1:
		n, next, err := readUint(data, idx, addl)
		if err != nil {
			return nil, idx, err
		}
		return -1 - int64(n), next, nil
	case 2:
		return decodeBytes(data, idx, addl)
	case 3:
		return decodeText(data, idx, addl)
	case 4:
		return decodeArray(data, idx, addl)
	case 5:
		return decodeMap(data, idx, addl)
	case 6:
		// Tag: skip the tag number, decode and return the inner value.
		_, next, err := readUint(data, idx, addl)
		if err != nil {
			return nil, idx, err
		}
		return decodeValue(data, next)
	case 7:
		return decodeSimple(data, idx, addl)
	default:
		return nil, idx, decodeErrorf("unsupported major type: %d", major)
	}
}

// readUint reads the "additional info" length/value for a CBOR item
// head. Indefinite length (addl==31) and the reserved values 28-30 are
// reported as an error; callers handling indefinite containers check
// addl directly before calling this for the count.
func readUint(data []byte, idx int, addl byte) (uint64, int, error) {
	switch {
	case addl < 24:
		return uint64(addl), idx, nil
	case addl == 24:
		b, next, err := readN(data, idx, 1)
		if err != nil {
			return 0, idx, err
		}
		return uint64(b[0]), next, nil
	case addl == 25:
		b, next, err := readN(data, idx, 2)
		if err != nil {
			return 0, idx, err
		}
		return uint64(binary.BigEndian.Uint16(b)), next, nil
	case addl == 26:
		b, next, err := readN(data, idx, 4)
		if err != nil {
			return 0, idx, err
		}
		return uint64(binary.BigEndian.Uint32(b)), next, nil
	case addl == 27:
		b, next, err := readN(data, idx, 8)
		if err != nil {
			return 0, idx, err
		}
		return binary.BigEndian.Uint64(b), next, nil
	default:
		return 0, idx, decodeErrorf("invalid additional info: %d", addl)
	}
}

func readN(data []byte, idx int, n int) ([]byte, int, error) {
	end := idx + n
	if end > len(data) {
		return nil, idx, decodeErrorf("unexpected end of data")
	}
	return data[idx:end], end, nil
}

func decodeBytes(data []byte, idx int, addl byte) (any, int, error) {
	if addl == 31 {
		var chunks [][]byte
		for {
			v, next, err := decodeValue(data, idx)
			if err != nil {
				return nil, idx, err
			}
			idx = next
			if _, isBreak := v.(breakMarker); isBreak {
				break
			}
			b, ok := v.([]byte)
			if !ok {
				return nil, idx, decodeErrorf("indefinite byte string contained non-bytes chunk")
			}
			chunks = append(chunks, b)
		}
		var total []byte
		for _, c := range chunks {
			total = append(total, c...)
		}
		return total, idx, nil
	}
	n, idx, err := readUint(data, idx, addl)
	if err != nil {
		return nil, idx, err
	}
	b, idx, err := readN(data, idx, int(n))
	if err != nil {
		return nil, idx, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, idx, nil
}

func decodeText(data []byte, idx int, addl byte) (any, int, error) {
	if addl == 31 {
		var parts []string
		for {
			v, next, err := decodeValue(data, idx)
			if err != nil {
				return nil, idx, err
			}
			idx = next
			if _, isBreak := v.(breakMarker); isBreak {
				break
			}
			s, ok := v.(string)
			if !ok {
				return nil, idx, decodeErrorf("indefinite text string contained non-text chunk")
			}
			parts = append(parts, s)
		}
		return joinStrings(parts), idx, nil
	}
	n, idx, err := readUint(data, idx, addl)
	if err != nil {
		return nil, idx, err
	}
	b, idx, err := readN(data, idx, int(n))
	if err != nil {
		return nil, idx, err
	}
	return string(b), idx, nil
}

func decodeArray(data []byte, idx int, addl byte) (any, int, error) {
	if addl == 31 {
		items := []any{}
		for {
			v, next, err := decodeValue(data, idx)
			if err != nil {
				return nil, idx, err
			}
			idx = next
			if _, isBreak := v.(breakMarker); isBreak {
				break
			}
			items = append(items, v)
		}
		return items, idx, nil
	}
	n, idx, err := readUint(data, idx, addl)
	if err != nil {
		return nil, idx, err
	}
	items := make([]any, 0, n)
	for i := uint64(0); i < n; i++ {
		v, next, err := decodeValue(data, idx)
		if err != nil {
			return nil, idx, err
		}
		idx = next
		if _, isBreak := v.(breakMarker); isBreak {
			return nil, idx, decodeErrorf("unexpected break in definite-length array")
		}
		items = append(items, v)
	}
	return items, idx, nil
}

func decodeMap(data []byte, idx int, addl byte) (any, int, error) {
	m := map[string]any{}
	if addl == 31 {
		for {
			k, next, err := decodeValue(data, idx)
			if err != nil {
				return nil, idx, err
			}
			idx = next
			if _, isBreak := k.(breakMarker); isBreak {
				break
			}
			v, next, err := decodeValue(data, idx)
			if err != nil {
				return nil, idx, err
			}
			idx = next
			if _, isBreak := v.(breakMarker); isBreak {
				return nil, idx, decodeErrorf("unexpected break in indefinite-length map value")
			}
			m[mapKey(k)] = v
		}
		return m, idx, nil
	}
	n, idx, err := readUint(data, idx, addl)
	if err != nil {
		return nil, idx, err
	}
	for i := uint64(0); i < n; i++ {
		k, next, err := decodeValue(data, idx)
		if err != nil {
			return nil, idx, err
		}
		idx = next
		v, next, err := decodeValue(data, idx)
		if err != nil {
			return nil, idx, err
		}
		idx = next
		if _, isBreak := k.(breakMarker); isBreak {
			return nil, idx, decodeErrorf("unexpected break in definite-length map")
		}
		if _, isBreak := v.(breakMarker); isBreak {
			return nil, idx, decodeErrorf("unexpected break in definite-length map")
		}
		m[mapKey(k)] = v
	}
	return m, idx, nil
}

// mapKey stringifies a decoded CBOR map key. The wire protocol this
// package serves only ever uses text-string keys; anything else is
// rendered with fmt so decoding still succeeds rather than panics.
func mapKey(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", k)
}

func decodeSimple(data []byte, idx int, addl byte) (any, int, error) {
	switch addl {
	case 20:
		return false, idx, nil
	case 21:
		return true, idx, nil
	case 22:
		return nil, idx, nil
	case 23:
		return nil, idx, nil // undefined -> nil
	case 24:
		b, next, err := readN(data, idx, 1)
		if err != nil {
			return nil, idx, err
		}
		return uint64(b[0]), next, nil
	case 25:
		b, next, err := readN(data, idx, 2)
		if err != nil {
			return nil, idx, err
		}
		return halfToFloat(binary.BigEndian.Uint16(b)), next, nil
	case 26:
		b, next, err := readN(data, idx, 4)
		if err != nil {
			return nil, idx, err
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), next, nil
	case 27:
		b, next, err := readN(data, idx, 8)
		if err != nil {
			return nil, idx, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), next, nil
	case 31:
		return breakMarker{}, idx, nil
	default:
		return uint64(addl), idx, nil
	}
}

// halfToFloat decodes an IEEE 754 binary16 value (zero/subnormal/normal/inf/nan).
func halfToFloat(h uint16) float64 {
	sign := (h >> 15) & 0x1
	exp := (h >> 10) & 0x1F
	frac := h & 0x3FF

	sgn := 1.0
	if sign != 0 {
		sgn = -1.0
	}

	switch {
	case exp == 0 && frac == 0:
		return sgn * 0.0
	case exp == 0:
		return sgn * (float64(frac) / 1024.0) * math.Pow(2, -14)
	case exp == 0x1F && frac == 0:
		if sign != 0 {
			return math.Inf(-1)
		}
		return math.Inf(1)
	case exp == 0x1F:
		return math.NaN()
	default:
		return sgn * (1.0 + float64(frac)/1024.0) * math.Pow(2, float64(exp)-15)
	}
}

func joinStrings(parts []string) string {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return string(out)
}
