package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"factcheck/backend/internal/app"
	"factcheck/backend/internal/config"
	"factcheck/backend/internal/factcheck"
	"factcheck/backend/internal/logger"
	"factcheck/backend/internal/sources"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "factcheck",
		Short:         "Check text, web pages and images for factual reliability",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newCheckCmd(), newSourcesCmd())
	return root
}

func newCheckCmd() *cobra.Command {
	var (
		kind string
		file string
	)

	cmd := &cobra.Command{
		Use:   "check [content]",
		Short: "Run one fact-check and print the verdict as JSON",
		Example: `  factcheck check "The Great Wall is visible from space."
  factcheck check --type url https://example.com/article
  factcheck check --type image --file photo.jpg.b64`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := logger.New(logger.Config{Level: cfg.LogLevel, OutputPaths: []string{"stderr"}})
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			deps, err := app.Build(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer deps.Close()

			result, err := deps.Orchestrator.Run(cmd.Context(), factcheck.ContentRequest{Kind: factcheck.Kind(kind), Payload: payload})
			if err != nil {
				fe := factcheck.AsError(err)
				return fmt.Errorf("%s: %s", fe.Kind, fe.UserMessage())
			}
			return printJSON(cmd.OutOrStdout(), result.Verdict.Public())
		},
	}

	cmd.Flags().StringVarP(&kind, "type", "t", string(factcheck.KindText), "content type: text, url or image")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from a file (- for stdin)")
	return cmd
}

func newSourcesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Print the trusted source directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := sources.LoadOrDefault(file)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"sources": dir.Entries()})
		},
	}
	cmd.Flags().StringVar(&file, "directory", os.Getenv("SOURCE_DIRECTORY_FILE"), "YAML source directory file")
	return cmd
}

func readPayload(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file == "-":
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(raw), nil
	case len(args) == 1 && strings.TrimSpace(args[0]) != "":
		return args[0], nil
	default:
		return "", errors.New("content is required: pass it as an argument or use --file")
	}
}

func printJSON(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
