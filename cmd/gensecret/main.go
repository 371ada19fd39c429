package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// Prints a random hex-encoded secret suitable for the SECRET_KEY setting
func main() {
	b := make([]byte, 32)

	if _, err := rand.Read(b); err != nil {
		fmt.Printf("error while generating secret key: %v", err)
		os.Exit(1)
	}

	fmt.Println(hex.EncodeToString(b))
}
