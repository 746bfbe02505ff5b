// Command tokengen issues a development bearer token for a user ID, signed
// with the configured JWT secret. Handy for exercising the API locally
// without the upstream identity service.
//
// Usage:
//
//	tokengen -user 4f8c... [-ttl 24h]
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dailysync/keeper/internal/auth"
	"github.com/dailysync/keeper/internal/config"
)

func main() {
	userFlag := flag.String("user", "", "user UUID to issue the token for (default: random)")
	ttlFlag := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("tokengen: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("tokengen: auth.jwt_secret is not configured")
	}

	userID := uuid.New()
	if *userFlag != "" {
		userID, err = uuid.Parse(*userFlag)
		if err != nil {
			log.Fatalf("tokengen: invalid user id: %v", err)
		}
	}

	manager := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	token, err := manager.GenerateToken(userID, *ttlFlag)
	if err != nil {
		log.Fatalf("tokengen: %v", err)
	}

	fmt.Printf("user:  %s\ntoken: %s\n", userID, token)
}
