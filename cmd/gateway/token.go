package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
	pkgconfig "github.com/weiawesome/wes-io-live/community-chat/pkg/config"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/jwt"
)

// runToken implements "gateway token": it signs a bearer token for local
// testing with the configured key.
func runToken(args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	configPath := fs.String("config", "config", "directory holding config.yaml")
	uid := fs.String("uid", "", "user id (required)")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "e-mail address")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *uid == "" {
		fmt.Fprintln(os.Stderr, "token: -uid is required")
		fs.Usage()
		return 2
	}

	if err := pkgconfig.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		return 1
	}

	manager, err := jwt.NewManager(cfg.Auth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		return 1
	}

	token, err := manager.Issue(*uid, *name, *email, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		return 1
	}

	fmt.Println(token)
	return 0
}
