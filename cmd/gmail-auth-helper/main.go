package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/oauth2"

	"portfolio-chatter/internal/delivery"
)

// Выпускает refresh token для отправки дайджестов через Gmail API
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: gmail-auth-helper <credentials.json>")
	}

	credentialsData, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read credentials file: %v", err)
	}

	credentials, err := delivery.ParseGoogleCredentials(credentialsData)
	if err != nil {
		log.Fatalf("Failed to parse credentials: %v", err)
	}

	config := delivery.GmailOAuthConfig(credentials.ClientID, credentials.ClientSecret)
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Printf("🔗 Gmail OAuth2 Authorization Helper (send scope)\n")
	fmt.Printf("=====================================\n")
	fmt.Printf("1. Open this URL in your browser:\n")
	fmt.Printf("   %s\n\n", authURL)
	fmt.Printf("2. Authorize the application\n")
	fmt.Printf("3. Copy the authorization code and enter it below\n\n")
	fmt.Printf("📝 Enter the authorization code: ")

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		log.Fatalf("Failed to read authorization code: %v", err)
	}

	token, err := config.Exchange(context.Background(), authCode)
	if err != nil {
		log.Fatalf("Failed to exchange code for token: %v", err)
	}
	if token.RefreshToken == "" {
		log.Fatal("❌ Google did not return a refresh token; revoke the app's access and run again")
	}

	fmt.Printf("\n✅ Successfully obtained tokens!\n")
	fmt.Printf("=====================================\n")
	fmt.Printf("Add these to your .env file:\n\n")
	fmt.Printf("QUERY_LOG_EMAIL_TRANSPORT=gmail\n")
	fmt.Printf("GMAIL_CLIENT_ID='%s'\n", credentials.ClientID)
	fmt.Printf("GMAIL_CLIENT_SECRET='%s'\n", credentials.ClientSecret)
	fmt.Printf("GMAIL_REFRESH_TOKEN='%s'\n", token.RefreshToken)
	fmt.Printf("\nExpires: %v\n", token.Expiry)
}
