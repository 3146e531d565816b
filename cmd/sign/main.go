package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/auth"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/config"
)

func main() {
	email := flag.String("email", "", "Account email (token subject)")
	ttl := flag.Duration("ttl", 0, "Token lifetime (default ACCESS_TOKEN_EXPIRE_MINUTES)")
	base := flag.String("url", "ws://localhost:8000", "Server base URL for the printed WebSocket URL")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "Usage: sign -email <account-email> [-ttl 30m] [-url ws://host:port]")
		fmt.Fprintln(os.Stderr, "  Uses SECRET_KEY from the environment or .env")
		os.Exit(1)
	}

	cfg := config.Load()
	lifetime := cfg.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	tokens := auth.NewTokens(cfg.SecretKey, lifetime)
	token, err := tokens.Issue(*email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	// Output header and chat URL
	fmt.Printf("Authorization: Bearer %s\n", token)
	fmt.Printf("WebSocket: %s/ws?token=%s\n", *base, url.QueryEscape(token))
	fmt.Printf("Expires: %s\n", time.Now().Add(tokens.TTL()).UTC().Format(time.RFC3339))
}
