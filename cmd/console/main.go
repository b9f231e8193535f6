package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"chat-companion/backend/internal/models"
	"chat-companion/backend/internal/store"
	"chat-companion/backend/pkg/config"
	"chat-companion/backend/pkg/di"
	"chat-companion/backend/pkg/logger"
	"chat-companion/backend/pkg/secrets"
)

// Console chat loop for local testing. Runs the session engine in
// single-tenant mode against an arbitrary local user.
func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = false
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	if err := secrets.Init(log); err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}

	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	ctx := context.Background()

	container, err := di.New(ctx, db, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	if err := container.Store.AutoMigrate(); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}
	if err := container.Engine.Bootstrap(ctx); err != nil {
		log.LogError(err, "Failed to bootstrap default personality")
		os.Exit(1)
	}
	if err := ensureLocalUser(ctx, container.Store); err != nil {
		log.LogError(err, "Failed to seed local user")
		os.Exit(1)
	}

	fmt.Println("Hello! I'm your AI companion.")
	fmt.Println("Type 'exit' to end the chat, or 'premium' to toggle premium features.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(input) {
		case "exit":
			fmt.Println("\nGoodbye! Take care!")
			return
		case "premium":
			fmt.Println("\nBot:", container.Engine.TogglePremium(ctx, nil))
			continue
		}

		fmt.Println("\nBot:", container.Engine.HandleMessage(ctx, nil, input))
	}
}

// ensureLocalUser creates one user without an external identity so that
// nil-id resolution has something to find on a fresh database.
func ensureLocalUser(ctx context.Context, st *store.Store) error {
	return st.WithTx(ctx, func(tx *store.Tx) error {
		_, err := tx.Users().First()
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrUserNotFound) {
			return err
		}
		return tx.Users().Create(&models.User{
			Name:      store.DefaultUserName,
			CreatedAt: time.Now().UTC(),
		})
	})
}
