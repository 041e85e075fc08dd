package base58

import (
	"math/big"
)

const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var (
	bigRadix   = big.NewInt(58)
	bigZero    = big.NewInt(0)
	decodeMap  [256]byte
	alphabetOK = false
)

func init() {
	for i := range decodeMap {
		decodeMap[i] = 0xFF
	}
	for i, c := range alphabet {
		decodeMap[c] = byte(i)
	}
	alphabetOK = true
}

// Encode encodes a byte slice into a modified base58 string.
func Encode(b []byte) string {
	x := new(big.Int)
	x.SetBytes(b)

	answer := make([]byte, 0, len(b)*136/100+1)
	mod := new(big.Int)
	for x.Cmp(bigZero) > 0 {
		x.DivMod(x, bigRadix, mod)
		answer = append(answer, alphabet[mod.Int64()])
	}

	for _, i := range b {
		if i != 0 {
			break
		}
		answer = append(answer, alphabet[0])
	}

	reverse(answer)
	return string(answer)
}

// Decode decodes a modified base58 string into a byte slice. It returns nil
// if the input contains a character outside of the base58 alphabet.
func Decode(s string) []byte {
	answer := big.NewInt(0)
	scratch := new(big.Int)
	for i := 0; i < len(s); i++ {
		tmp := decodeMap[s[i]]
		if tmp == 0xFF {
			return nil
		}
		scratch.SetInt64(int64(tmp))
		answer.Mul(answer, bigRadix)
		answer.Add(answer, scratch)
	}

	decoded := answer.Bytes()
	var numZeros int
	for numZeros = 0; numZeros < len(s); numZeros++ {
		if s[numZeros] != alphabet[0] {
			break
		}
	}
	flen := numZeros + len(decoded)
	val := make([]byte, flen)
	copy(val[numZeros:], decoded)
	return val
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
