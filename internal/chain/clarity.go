package chain

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Clarity value type prefixes per SIP-005 serialization.
const (
	cvInt               byte = 0x00
	cvUInt              byte = 0x01
	cvBuffer            byte = 0x02
	cvBoolTrue          byte = 0x03
	cvBoolFalse         byte = 0x04
	cvPrincipalStandard byte = 0x05
	cvPrincipalContract byte = 0x06
	cvResponseOk        byte = 0x07
	cvResponseErr       byte = 0x08
	cvOptionalNone      byte = 0x09
	cvOptionalSome      byte = 0x0a
	cvList              byte = 0x0b
	cvTuple             byte = 0x0c
	cvStringASCII       byte = 0x0d
	cvStringUTF8        byte = 0x0e
)

// ClarityValue is a decoded Clarity value. Only the field matching Type
// is meaningful.
type ClarityValue struct {
	Type  byte
	Int   *big.Int                // cvInt, cvUInt
	Bytes []byte                  // cvBuffer, principals (raw serialization)
	Str   string                  // cvStringASCII, cvStringUTF8
	Inner *ClarityValue           // cvResponseOk/Err, cvOptionalSome
	List  []ClarityValue          // cvList
	Tuple map[string]ClarityValue // cvTuple
}

// EncodeUint serializes v as a hex Clarity uint argument ("0x01" + 16 bytes).
func EncodeUint(v uint64) string {
	buf := make([]byte, 17)
	buf[0] = cvUInt
	binary.BigEndian.PutUint64(buf[9:], v)
	return "0x" + hex.EncodeToString(buf)
}

// EncodeStringASCII serializes s as a hex Clarity string-ascii argument.
func EncodeStringASCII(s string) string {
	buf := make([]byte, 5+len(s))
	buf[0] = cvStringASCII
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(s)))
	copy(buf[5:], s)
	return "0x" + hex.EncodeToString(buf)
}

// DecodeClarityHex decodes a hex-encoded Clarity value as returned by the
// node's read-only call endpoint.
func DecodeClarityHex(s string) (*ClarityValue, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode clarity hex: %w", err)
	}

	v, rest, err := decodeClarity(raw)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode clarity: %d trailing bytes", len(rest))
	}
	return v, nil
}

func decodeClarity(b []byte) (*ClarityValue, []byte, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("decode clarity: empty input")
	}

	t, b := b[0], b[1:]
	v := &ClarityValue{Type: t}

	switch t {
	case cvInt, cvUInt:
		if len(b) < 16 {
			return nil, nil, fmt.Errorf("decode clarity: short integer")
		}
		n := new(big.Int).SetBytes(b[:16])
		if t == cvInt && b[0]&0x80 != 0 {
			// two's complement negative
			n.Sub(n, new(big.Int).Lsh(big.NewInt(1), 128))
		}
		v.Int = n
		return v, b[16:], nil

	case cvBoolTrue, cvBoolFalse, cvOptionalNone:
		return v, b, nil

	case cvBuffer:
		n, rest, err := readLen(b)
		if err != nil {
			return nil, nil, err
		}
		if len(rest) < n {
			return nil, nil, fmt.Errorf("decode clarity: short buffer")
		}
		v.Bytes = rest[:n]
		return v, rest[n:], nil

	case cvPrincipalStandard:
		if len(b) < 21 { // version byte + hash160
			return nil, nil, fmt.Errorf("decode clarity: short principal")
		}
		v.Bytes = b[:21]
		return v, b[21:], nil

	case cvPrincipalContract:
		if len(b) < 22 {
			return nil, nil, fmt.Errorf("decode clarity: short contract principal")
		}
		nameLen := int(b[21])
		if len(b) < 22+nameLen {
			return nil, nil, fmt.Errorf("decode clarity: short contract name")
		}
		v.Bytes = b[:21]
		v.Str = string(b[22 : 22+nameLen])
		return v, b[22+nameLen:], nil

	case cvResponseOk, cvResponseErr, cvOptionalSome:
		inner, rest, err := decodeClarity(b)
		if err != nil {
			return nil, nil, err
		}
		v.Inner = inner
		return v, rest, nil

	case cvList:
		n, rest, err := readLen(b)
		if err != nil {
			return nil, nil, err
		}
		v.List = make([]ClarityValue, 0, n)
		for i := 0; i < n; i++ {
			var item *ClarityValue
			item, rest, err = decodeClarity(rest)
			if err != nil {
				return nil, nil, err
			}
			v.List = append(v.List, *item)
		}
		return v, rest, nil

	case cvTuple:
		n, rest, err := readLen(b)
		if err != nil {
			return nil, nil, err
		}
		v.Tuple = make(map[string]ClarityValue, n)
		for i := 0; i < n; i++ {
			if len(rest) < 1 {
				return nil, nil, fmt.Errorf("decode clarity: short tuple key")
			}
			keyLen := int(rest[0])
			rest = rest[1:]
			if len(rest) < keyLen {
				return nil, nil, fmt.Errorf("decode clarity: short tuple key")
			}
			key := string(rest[:keyLen])
			rest = rest[keyLen:]

			var item *ClarityValue
			item, rest, err = decodeClarity(rest)
			if err != nil {
				return nil, nil, err
			}
			v.Tuple[key] = *item
		}
		return v, rest, nil

	case cvStringASCII, cvStringUTF8:
		n, rest, err := readLen(b)
		if err != nil {
			return nil, nil, err
		}
		if len(rest) < n {
			return nil, nil, fmt.Errorf("decode clarity: short string")
		}
		v.Str = string(rest[:n])
		return v, rest[n:], nil

	default:
		return nil, nil, fmt.Errorf("decode clarity: unknown type prefix 0x%02x", t)
	}
}

// readLen reads a 4-byte big-endian length prefix.
func readLen(b []byte) (int, []byte, error) {
	if len(b) < 4 {
		return 0, nil, fmt.Errorf("decode clarity: short length prefix")
	}
	return int(binary.BigEndian.Uint32(b[:4])), b[4:], nil
}

// ExpectOk unwraps a (response ok ...) value.
func (v *ClarityValue) ExpectOk() (*ClarityValue, error) {
	switch v.Type {
	case cvResponseOk:
		return v.Inner, nil
	case cvResponseErr:
		return nil, fmt.Errorf("contract returned err: %s", v.Inner.describe())
	default:
		return nil, fmt.Errorf("expected response, got type 0x%02x", v.Type)
	}
}

// TupleUint extracts an unsigned integer field from a tuple value.
func (v *ClarityValue) TupleUint(key string) (*big.Int, error) {
	if v.Type != cvTuple {
		return nil, fmt.Errorf("expected tuple, got type 0x%02x", v.Type)
	}
	field, ok := v.Tuple[key]
	if !ok {
		return nil, fmt.Errorf("tuple missing field %q", key)
	}
	if field.Type != cvUInt && field.Type != cvInt {
		return nil, fmt.Errorf("tuple field %q is not an integer", key)
	}
	return field.Int, nil
}

func (v *ClarityValue) describe() string {
	switch v.Type {
	case cvInt, cvUInt:
		return v.Int.String()
	case cvStringASCII, cvStringUTF8:
		return v.Str
	default:
		return fmt.Sprintf("value of type 0x%02x", v.Type)
	}
}
