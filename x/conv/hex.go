// Package conv formats numbers into caller buffers without fmt or strconv,
// so interrupt-adjacent code can log without allocating.
package conv

const hexd = "0123456789abcdef"

// AppendHex8 appends b as two lowercase hex digits.
func AppendHex8(dst []byte, b byte) []byte {
	return append(dst, hexd[b>>4], hexd[b&0xf])
}

// AppendHex appends p as space-separated byte pairs ("0a 1b ff").
func AppendHex(dst []byte, p []byte) []byte {
	for i, b := range p {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = AppendHex8(dst, b)
	}
	return dst
}

// AppendUint appends n in base 10.
func AppendUint(dst []byte, n uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, tmp[i:]...)
}
