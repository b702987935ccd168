package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"library-lending/internal/config"
	"library-lending/library"
)

// columns expected in the CSV header, in any order.
var columns = []string{"title", "isbn", "author", "category"}

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:          "import_books FILE.csv",
		Short:        "Import books from a CSV file with title, isbn, author and category columns",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			manager, err := library.NewLibraryManager(cfg.Database.Path,
				library.WithLogger(logger),
				library.WithDatabaseOptions(library.WithBusyTimeout(cfg.Database.GetBusyTimeout())),
			)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer manager.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return importBooks(cmd, manager.Books(), f)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func importBooks(cmd *cobra.Command, books *library.BookCatalog, r io.Reader) error {
	out := cmd.OutOrStdout()
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	index, err := headerIndex(header)
	if err != nil {
		return err
	}

	successCount := 0
	errorCount := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			fmt.Fprintf(out, "line %d: ERROR - %v\n", parseErr.Line, parseErr.Err)
			errorCount++
			continue
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}

		in := library.BookInput{
			Title:    record[index["title"]],
			ISBN:     record[index["isbn"]],
			Author:   record[index["author"]],
			Category: record[index["category"]],
		}
		fmt.Fprintf(out, "Importing: %s by %s... ", in.Title, in.Author)

		res := books.Create(cmd.Context(), in)
		if !res.OK() {
			fmt.Fprintf(out, "ERROR - %v\n", res.Err())
			errorCount++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", res.ID)
		successCount++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)
	if errorCount > 0 {
		return fmt.Errorf("%d rows could not be imported", errorCount)
	}
	return nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	var missing []string
	for _, col := range columns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing CSV columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}
