package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/leadops-io/leadops/internal/database"
	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/repository"
	"github.com/leadops-io/leadops/internal/signing"
)

type genkeyConfig struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

// Usage:
//
//	genkey                          print fresh API key material
//	genkey secret                   print fresh signing secret material
//	genkey -workspace "Acme Inc"    create the workspace and persist an
//	                                API key for it (needs DATABASE_URL)
func main() {
	workspaceName := flag.String("workspace", "", "provision a workspace with this name and store an API key for it")
	keyName := flag.String("name", "default", "name stored with a provisioned API key")
	flag.Parse()

	if *workspaceName != "" {
		if err := provision(*workspaceName, *keyName); err != nil {
			log.Fatalf("provision failed: %v", err)
		}
		return
	}

	gen := signing.NewAPIKey
	if flag.Arg(0) == "secret" {
		gen = signing.NewSigningSecret
	}

	secret, err := gen()
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("KEY=%s\nHASH=%s\nPREFIX=%s\n", secret.Plain, secret.Hash, secret.Prefix)
}

func provision(workspaceName, keyName string) error {
	var cfg genkeyConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required to provision a workspace")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	workspace := &domain.Workspace{
		Name:     workspaceName,
		Slug:     slugify(workspaceName),
		IsActive: true,
	}
	if err := repository.NewWorkspaceRepository(pool).Create(ctx, workspace); err != nil {
		return err
	}

	secret, err := signing.NewAPIKey()
	if err != nil {
		return err
	}

	key := &domain.APIKey{
		WorkspaceID: workspace.ID,
		Name:        keyName,
		KeyHash:     secret.Hash,
		KeyPrefix:   secret.Prefix,
		IsActive:    true,
	}
	if err := repository.NewAPIKeyRepository(pool).Create(ctx, key); err != nil {
		return err
	}

	// The plaintext key is printed exactly once; only the hash is stored.
	fmt.Printf("WORKSPACE_ID=%s\nWORKSPACE_SLUG=%s\nAPI_KEY=%s\nPREFIX=%s\n",
		workspace.ID, workspace.Slug, secret.Plain, secret.Prefix)
	return nil
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, slug)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = fmt.Sprintf("workspace-%d", os.Getpid())
	}
	return slug
}
