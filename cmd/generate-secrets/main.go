package main

import (
	"fmt"
	"log"

	"github.com/rentwheels/carshare-backend/internal/utils"
)

// Prints fresh values for the secret environment variables
func main() {
	accessSecret, refreshSecret, err := utils.GenerateJWTSecrets()
	if err != nil {
		log.Fatalf("Failed to generate JWT secrets: %v", err)
	}

	sealKey, err := utils.GenerateSealKey()
	if err != nil {
		log.Fatalf("Failed to generate bank account key: %v", err)
	}

	fmt.Println("# RentWheels secrets - add to .env or the deployment secret store")
	fmt.Printf("JWT_SECRET=%s\n", accessSecret)
	fmt.Printf("JWT_REFRESH_SECRET=%s\n", refreshSecret)
	fmt.Printf("BANK_ACCOUNT_KEY=%s\n", sealKey)
	fmt.Println()
	fmt.Println("# BANK_ACCOUNT_KEY seals stored account numbers. Rotating it makes existing")
	fmt.Println("# accounts display as ****last4 until they are re-entered.")
}
