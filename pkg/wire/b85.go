package wire

import (
	"strings"

	"github.com/matzehuels/weft/pkg/errors"
)

// base85Alphabet is the RFC 1924 character set. The alphabet is part of the
// wire contract and must not change.
const base85Alphabet = "0123456789" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"!#$%&()*+-;<=>?@^_`{|}~"

var base85Decode = func() [256]int8 {
	var table [256]int8
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(base85Alphabet); i++ {
		table[base85Alphabet[i]] = int8(i)
	}
	return table
}()

// EncodeBase85 encodes raw bytes for embedding inside a tagged part. Full
// 4-byte groups produce 5 characters; a trailing group of n bytes (1-3)
// produces exactly n+1 characters, so the original length is recoverable
// from the text length alone.
func EncodeBase85(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow((len(data)/4)*5 + 4)

	for len(data) >= 4 {
		v := uint64(data[0])<<24 | uint64(data[1])<<16 | uint64(data[2])<<8 | uint64(data[3])
		sb.WriteString(encodeGroup(v, 5))
		data = data[4:]
	}

	if n := len(data); n > 0 {
		var v uint64
		for _, b := range data {
			v = v<<8 | uint64(b)
		}
		sb.WriteString(encodeGroup(v, n+1))
	}

	return sb.String()
}

// encodeGroup renders v as exactly width base-85 digits, most significant
// first. Every representable group value fits: 2^(8n) <= 85^(n+1).
func encodeGroup(v uint64, width int) string {
	var digits [5]byte
	for i := width - 1; i >= 0; i-- {
		digits[i] = base85Alphabet[v%85]
		v /= 85
	}
	return string(digits[:width])
}

// DecodeBase85 reverses EncodeBase85. It rejects characters outside the
// alphabet, impossible text lengths, and digit groups whose value overflows
// the byte width they claim to encode.
func DecodeBase85(s string) ([]byte, error) {
	if len(s) == 0 {
		return []byte{}, nil
	}
	if len(s)%5 == 1 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "base85 text length %d is impossible", len(s))
	}

	out := make([]byte, 0, (len(s)/5)*4+3)
	for len(s) >= 5 {
		v, err := decodeGroup(s[:5])
		if err != nil {
			return nil, err
		}
		if v > 0xFFFFFFFF {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "base85 group overflows 4 bytes")
		}
		out = append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
		s = s[5:]
	}

	if len(s) > 0 {
		n := len(s) - 1 // remaining group encodes n bytes
		v, err := decodeGroup(s)
		if err != nil {
			return nil, err
		}
		if v >= 1<<(8*uint(n)) {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "base85 trailing group overflows %d bytes", n)
		}
		for i := n - 1; i >= 0; i-- {
			out = append(out, byte(v>>(8*uint(i))))
		}
	}

	return out, nil
}

func decodeGroup(s string) (uint64, error) {
	var v uint64
	for i := 0; i < len(s); i++ {
		d := base85Decode[s[i]]
		if d < 0 {
			return 0, errors.New(errors.ErrCodeInvalidFormat, "invalid base85 character %q", s[i])
		}
		v = v*85 + uint64(d)
	}
	return v, nil
}
