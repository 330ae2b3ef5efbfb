package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"supportchat/backend/internal/auth"
	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/chathub"
	"supportchat/backend/internal/config"
	"supportchat/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  open-room <user_a> <user_b>   create a room for a matched pair
  archive <room_id>             archive a room
  archive-stale                 archive every room past its inactivity limit
  token <user_id> [alias]       issue a chat token
  online                        list users marked online in Redis`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]

	if command == "token" {
		if len(args) < 1 {
			fmt.Println("Usage: admin token <user_id> [alias]")
			os.Exit(1)
		}
		alias := ""
		if len(args) > 1 {
			alias = args[1]
		}
		tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		token, err := tokens.Issue(args[0], alias)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
		return
	}

	if command == "online" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		users, err := storage.NewStorageService(nil, rdb, nil).OnlineUsers(ctx)
		if err != nil {
			log.Fatalf("Error listing online users: %v", err)
		}
		for _, u := range users {
			fmt.Println(u)
		}
		return
	}

	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	storageSvc := storage.NewStorageService(db, nil, nil) // No redis needed for admin CLI
	hub := chathub.NewManagerService(storageSvc, nil, chathub.Options{})

	switch command {
	case "open-room":
		if len(args) != 2 {
			fmt.Println("Usage: admin open-room <user_a> <user_b>")
			os.Exit(1)
		}
		room, err := hub.OpenRoom(ctx, args[0], args[1])
		if errors.Is(err, chaterr.ErrConflict) && room != nil {
			fmt.Printf("Pair already has active room %s.\n", room.RoomID)
			return
		}
		if err != nil {
			log.Fatalf("Error opening room: %v", err)
		}
		fmt.Printf("Room %s opened.\n", room.RoomID)
	case "archive":
		if len(args) != 1 {
			fmt.Println("Usage: admin archive <room_id>")
			os.Exit(1)
		}
		if err := hub.Archive(ctx, args[0], "admin"); err != nil {
			log.Fatalf("Error archiving room: %v", err)
		}
		fmt.Printf("Room %s has been archived.\n", args[0])
	case "archive-stale":
		n, err := hub.SweepStaleRooms(ctx)
		if err != nil {
			log.Fatalf("Error archiving stale rooms: %v", err)
		}
		fmt.Printf("Archived %d stale rooms.\n", n)
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}
