package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// calc_key_hash.go - Utility to calculate the SHA256 hash stored for an
// API key or signing secret
//
// Usage:
//   go run scripts/calc_key_hash.go <key>
//
// Example:
//   go run scripts/calc_key_hash.go lop_test_devdevdevdevdevdevdevdevdevdev00

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run calc_key_hash.go <key>")
		fmt.Println("")
		fmt.Println("Example:")
		fmt.Println("  go run scripts/calc_key_hash.go lop_test_devdevdevdevdevdevdevdevdevdev00")
		os.Exit(1)
	}

	key := os.Args[1]
	hash := sha256.Sum256([]byte(key))
	hashHex := hex.EncodeToString(hash[:])

	fmt.Printf("Key:    %s\n", key)
	fmt.Printf("SHA256: %s\n", hashHex)
}
