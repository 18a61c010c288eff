package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// 32 bytes is enough for HS256
const defaultSecretKeyBytesLen = 32

func main() {
	var size int
	pflag.IntVarP(&size, "bytes", "b", defaultSecretKeyBytesLen, "Secret key length in bytes")
	pflag.Parse()

	secret, err := generate(size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(secret)
}

// Random hex encoded secret suitable for SECRET_KEY
func generate(size int) (string, error) {
	if size < defaultSecretKeyBytesLen {
		return "", fmt.Errorf("secret key has to be at least %d bytes", defaultSecretKeyBytesLen)
	}

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
