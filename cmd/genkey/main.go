package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
)

// Prints a random SECRET_KEY for signing access tokens, ready for .env.
func main() {
	size := flag.Int("bytes", 32, "Key length in bytes (at least 32 for HS256)")
	flag.Parse()

	if *size < 32 {
		fmt.Fprintln(os.Stderr, "Key must be at least 32 bytes")
		os.Exit(1)
	}

	key := make([]byte, *size)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("SECRET_KEY=%s\n", base64.RawURLEncoding.EncodeToString(key))
}
