package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const defaultSecretBytesLen = 32

// Print token signing secrets as .env lines
func main() {
	size := pflag.IntP("bytes", "b", defaultSecretBytesLen, "Secret length in bytes")
	pflag.Parse()

	if err := writeSecrets(os.Stdout, rand.Reader, *size); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

func writeSecrets(w io.Writer, random io.Reader, size int) error {
	if size < 16 {
		return fmt.Errorf("secret has to be at least 16 bytes, got %d", size)
	}

	for _, key := range []string{"ACCESS_TOKEN_SECRET", "REFRESH_TOKEN_SECRET"} {
		b := make([]byte, size)
		if _, err := io.ReadFull(random, b); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s=%s\n", key, hex.EncodeToString(b)); err != nil {
			return err
		}
	}

	return nil
}
