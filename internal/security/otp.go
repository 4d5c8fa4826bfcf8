package security

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	otpMin = 100000
	otpMax = 999999
)

// GenerateOTPCode returns a uniformly random six digit code.
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// HashOTPCode binds the code to its challenge under the server pepper, so a
// leaked table row cannot be brute forced offline or replayed on another
// challenge.
func HashOTPCode(challengeID, code, pepper string) string {
	return HashToken(challengeID+":"+code, pepper)
}

func ValidOTPCodeFormat(code string) bool {
	if len(code) != 6 || code[0] == '0' {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
