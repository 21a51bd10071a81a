package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"match-chat-backend/internal/store"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olekukonko/tablewriter"
)

const maxValueWidth = 80

func main() {
	driver := flag.String("driver", "badger", "Store backend: badger or postgres")
	dbPath := flag.String("db", "data/badger", "Path to badger DB")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	prefix := flag.String("prefix", "", "Path prefix to scan, e.g. messages/ or users/")
	colours := flag.Bool("color", true, "Colorize the header")
	flag.Parse()

	ctx := context.Background()
	kv, err := openKV(ctx, *driver, *dbPath, *dsn)
	if err != nil {
		log.Fatal("Error while opening store: ", err)
	}
	defer kv.Close()

	entries, err := kv.Scan(ctx, *prefix)
	if err != nil {
		log.Fatal(err)
	}

	header := fmt.Sprintf("  ====== %s %s (%d rows) ======", *driver, *prefix, len(entries))
	if *colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Path", "Collection", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, e := range entries {
		collection, _, _ := strings.Cut(e.Key, "/")
		table.Append([]string{e.Key, collection, shorten(string(e.Value))})
	}
	table.Render()
}

func openKV(ctx context.Context, driver, dbPath, dsn string) (store.KV, error) {
	switch driver {
	case "badger":
		opts := badger.DefaultOptions(dbPath).
			WithReadOnly(true).
			WithLogger(nil).
			WithBypassLockGuard(true)
		db, err := badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
		return store.NewBadgerKV(db), nil
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("-dsn or DATABASE_URL is required for postgres")
		}
		db, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return store.NewPostgresKV(db), nil
	}
	return nil, fmt.Errorf("unknown driver %q", driver)
}

func shorten(s string) string {
	r := []rune(s)
	if len(r) <= maxValueWidth {
		return s
	}
	return string(r[:maxValueWidth-3]) + "..."
}
