package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/laventecare/authcore/internal/crypto"
)

func main() {
	mode := "jwt"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "totp":
		genTOTPKey()
	default:
		genJWTKey()
	}
}

func genJWTKey() {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		fmt.Printf("Failed to generate key: %v\n", err)
		os.Exit(1)
	}

	privBytes := x509.MarshalPKCS1PrivateKey(privateKey)
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privBytes,
	})

	fmt.Println("--- COPY BELOW TO .env.local ---")
	fmt.Printf("JWT_PRIVATE_KEY=\"%s\"\n", string(privPEM))
	fmt.Println("--------------------------------")
}

func genTOTPKey() {
	key, err := crypto.GenerateTOTPSecretKey()
	if err != nil {
		fmt.Printf("Failed to generate key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("--- COPY BELOW TO .env.local ---")
	fmt.Printf("AUTHCORE_TOTP_SECRET_KEY=%s\n", key)
	fmt.Println("--------------------------------")
}
