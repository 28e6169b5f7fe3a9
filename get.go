package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/stevemurr/docstore-api/normalize"
	"github.com/stevemurr/docstore-api/store"
)

var (
	getLimit    int
	getOffset   int
	getOrderBy  string
	getOrderDir string
	getBackend  string
	getDataDir  string
)

var getCmd = &cobra.Command{
	Use:   "get <collection> [documentId]",
	Short: "Print a page of a collection or a single document",
	Long: `Print normalized documents as JSON, exactly as the HTTP API would return
them. With a document ID a single document is printed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("backend") {
			cfg.Backend = getBackend
		}
		if flags.Changed("data-dir") {
			cfg.DataDir = getDataDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var q store.Query
		if len(args) == 1 {
			dir, err := store.ParseDirection(getOrderDir)
			if err != nil {
				return err
			}
			q = store.Query{Limit: getLimit, Offset: getOffset, OrderBy: getOrderBy, Direction: dir}
			if err := q.Validate(); err != nil {
				return err
			}
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		var out any
		if len(args) == 2 {
			snap, err := s.FetchOne(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			out = normalize.Document(snap)
		} else {
			snaps, err := s.FetchPage(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			out = normalize.Page(snaps)
		}
		return writeJSON(cmd.OutOrStdout(), out)
	},
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().IntVar(&getLimit, "limit", store.DefaultLimit, "Maximum number of documents (1-1000)")
	getCmd.Flags().IntVar(&getOffset, "offset", 0, "Number of documents to skip")
	getCmd.Flags().StringVar(&getOrderBy, "order-by", "", "Field to order by")
	getCmd.Flags().StringVar(&getOrderDir, "order-dir", string(store.Asc), "Sort direction: asc or desc")
	getCmd.Flags().StringVar(&getBackend, "backend", "", "Store backend: firestore, json, sqlite, postgres, memory")
	getCmd.Flags().StringVar(&getDataDir, "data-dir", "", "Directory of the local backends")
}
