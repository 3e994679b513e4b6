package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askbridge/askbridge/internal/config"
	"github.com/askbridge/askbridge/internal/ingest"
	"github.com/askbridge/askbridge/internal/llm"
	"github.com/askbridge/askbridge/internal/retrieval"
	"github.com/askbridge/askbridge/internal/storage"
)

// --- ask ---

type askReply struct {
	Answer    string `json:"answer"`
	Route     string `json:"route"`
	SQLQuery  string `json:"sql_query"`
	Citations []struct {
		SourceDocument string `json:"source_document"`
		Page           int    `json:"page"`
		Snippet        string `json:"snippet"`
	} `json:"citations"`
	ToolTrace []string `json:"tool_trace"`
	SessionID string   `json:"session_id"`
	RateLimit struct {
		Limit     int  `json:"limit"`
		UsedToday int  `json:"used_today"`
		Remaining int  `json:"remaining"`
		Unlimited bool `json:"unlimited"`
	} `json:"rate_limit"`
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question against the running server",
	Long: `Ask a question against the running server.

Examples:
  askbridge ask "How many RAV4 HEV were sold in 2024?"
  askbridge ask --session abc123 "And the year before?"
  askbridge ask --trace "Compare RAV4 sales with the warranty terms"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		session, _ := cmd.Flags().GetString("session")
		showTrace, _ := cmd.Flags().GetBool("trace")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{"question": question}
		if session != "" {
			body["session_id"] = session
		}
		resp, err := client.post(cmd.Context(), "/api/v1/ask", body)
		if err != nil {
			return err
		}

		var reply askReply
		if err := decodeJSON(resp, &reply); err != nil {
			return err
		}

		fmt.Println(reply.Answer)

		if len(reply.Citations) > 0 {
			fmt.Println()
			for _, c := range reply.Citations {
				fmt.Printf("  %s (%s, page %d)\n", colorize(colorCyan, "source:"), c.SourceDocument, c.Page)
			}
		}
		if showTrace {
			fmt.Println()
			for _, entry := range reply.ToolTrace {
				printStep("%s", entry)
			}
		}

		printStatus("Session", "%s", reply.SessionID)
		if !reply.RateLimit.Unlimited {
			printStatus("Quota", "%d/%d used today", reply.RateLimit.UsedToday, reply.RateLimit.Limit)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("session", "", "session id from a previous ask, for follow-up questions")
	askCmd.Flags().Bool("trace", false, "print the tool trace")
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Index documents into the retrieval store",
	Long: `Index documents into the retrieval store.

Supported formats: .pdf, .txt, .md. Re-ingesting a document replaces its
previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		client, err := llm.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel, cfg.OpenAI.EmbedModel)
		if err != nil {
			return fmt.Errorf("creating model client: %w", err)
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		ing := ingest.NewIngester(
			retrieval.NewEmbedder(client),
			retrieval.NewSQLiteStore(store.DB()),
			nil,
		)

		for _, path := range args {
			printStep("Ingesting %s...", path)
			stats, err := ing.IngestFile(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", path, err)
			}
			printSuccess("%s: %d pages, %d chunks indexed (%d replaced)",
				stats.Document, stats.Pages, stats.Chunks, stats.Replaced)
		}
		return nil
	},
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List indexed documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		vectors := retrieval.NewSQLiteStore(store.DB())
		docs, err := vectors.Documents()
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}
		count, err := vectors.Count()
		if err != nil {
			return fmt.Errorf("counting chunks: %w", err)
		}

		if len(docs) == 0 {
			fmt.Println("No documents indexed.")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("  %s\n", d)
		}
		printStatus("Total", "%d documents, %d chunks", len(docs), count)
		return nil
	},
}

// --- load-sales ---

var loadSalesCmd = &cobra.Command{
	Use:   "load-sales <csv>",
	Short: "Load sales figures from a CSV into the sales database",
	Long: `Load sales figures from a CSV into the sales database.

The CSV must have a header with columns: model, year, month, units_sold,
region, powertrain (in any order).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dbPath, _ := cmd.Flags().GetString("db")
		if dbPath == "" {
			dbPath = cfg.Storage.SalesDBPath
		}

		n, err := ingest.LoadSalesCSV(cmd.Context(), dbPath, args[0])
		if err != nil {
			return err
		}
		printSuccess("Loaded %d sales rows into %s", n, dbPath)
		return nil
	},
}

func init() {
	loadSalesCmd.Flags().String("db", "", "sales database path (default from config)")
}

// --- ratelimit ---

var ratelimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Inspect or reset daily usage counters",
}

var ratelimitStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's per-caller usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.adminGet(cmd.Context(), "/admin/rate-limit/stats")
		if err != nil {
			return err
		}

		var stats struct {
			Day     string `json:"day"`
			Callers []struct {
				Identifier        string `json:"identifier"`
				InteractionCount  int    `json:"interaction_count"`
				LastInteractionAt string `json:"last_interaction_at"`
			} `json:"callers"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		if len(stats.Callers) == 0 {
			fmt.Printf("No usage recorded for %s.\n", stats.Day)
			return nil
		}
		fmt.Printf("Usage for %s:\n", stats.Day)
		for _, c := range stats.Callers {
			fmt.Printf("  %s  %d interactions  (last %s)\n",
				colorize(colorBold, c.Identifier), c.InteractionCount, c.LastInteractionAt)
		}
		return nil
	},
}

var ratelimitResetCmd = &cobra.Command{
	Use:   "reset <identifier>",
	Short: "Reset today's usage for a caller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.adminPost(cmd.Context(), "/admin/rate-limit/reset",
			map[string]string{"identifier": args[0]})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Reset usage for %s", args[0])
		return nil
	},
}

func init() {
	ratelimitCmd.AddCommand(ratelimitStatusCmd)
	ratelimitCmd.AddCommand(ratelimitResetCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the askbridge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("askbridge version %s\n", version)
	},
}
