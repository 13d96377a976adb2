package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

var errUsage = errors.New("expected 'export' or 'import' subcommands")

// run executes one subcommand. Every resource it opens is closed before it
// returns.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}

	var importFile string
	switch args[0] {
	case "export":
		exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
		if err := exportCmd.Parse(args[1:]); err != nil {
			return err
		}
	case "import":
		importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
		importCmd.StringVar(&importFile, "file", "", "JSON file to import")
		if err := importCmd.Parse(args[1:]); err != nil {
			return err
		}
		if importFile == "" {
			importCmd.PrintDefaults()
			return errors.New("import: -file is required")
		}
	default:
		return errUsage
	}

	cfg := config.Load()
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer store.Close()

	if args[0] == "export" {
		if err := doExport(ctx, store, stdout); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		return nil
	}

	file, err := os.Open(importFile)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	imported, skipped, err := doImport(ctx, store, file)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	log.Printf("Imported %d links, skipped %d", imported, skipped)
	return nil
}

// doExport writes every link of both partitions as a JSON array.
func doExport(ctx context.Context, store ports.LinkStore, w io.Writer) error {
	links, err := store.Dump(ctx)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(links)
}

// doImport re-creates links as exported. Slugs already taken in either
// partition are skipped.
func doImport(ctx context.Context, store ports.LinkStore, r io.Reader) (imported, skipped int, err error) {
	var links []domain.Link
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		return 0, 0, fmt.Errorf("decode: %w", err)
	}

	for i := range links {
		l := &links[i]
		if l.Slug == "" {
			log.Printf("Skipping link without slug (id=%q)", l.ID)
			skipped++
			continue
		}
		if l.Owner == "" {
			l.Owner = domain.Anonymous
		}

		exists, err := store.SlugExists(ctx, l.Slug)
		if err != nil {
			return imported, skipped, err
		}
		if exists {
			log.Printf("Skipping existing slug: %s", l.Slug)
			skipped++
			continue
		}

		if err := store.Create(ctx, l); err != nil {
			log.Printf("Failed to import %s: %v", l.Slug, err)
			skipped++
			continue
		}
		imported++
	}
	return imported, skipped, nil
}
