package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cloo-solutions/askdoc/internal/cli"
	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/cloo-solutions/askdoc/internal/service"
	"github.com/spf13/cobra"
)

// Ingester runs the ingestion pipeline for one document
type Ingester interface {
	Ingest(ctx context.Context, doc domain.SourceDocument, progress service.ProgressFunc) (*service.IngestReport, error)
}

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "ingest <file.pdf>",
		Short:       "Index a PDF document",
		Long:        "Extract, chunk, embed and index a PDF into the configured collection",
		Args:        cobra.ExactArgs(1),
		RunE:        runIngestCmd,
		Annotations: map[string]string{cli.EnvAnnotation: "ASKDOC_DATABASE_URL,ASKDOC_VECTOR_BACKEND,ASKDOC_COLLECTION,ASKDOC_OPENAI_API_KEY,ASKDOC_DOC_INTEL_ENDPOINT"},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIngestCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, cleanup, err := Setup()
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	output, _ := cmd.Flags().GetString("output")
	return runIngest(cmd.Context(), a.Ingest, filepath.Base(args[0]), data, output, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func runIngest(ctx context.Context, ingester Ingester, name string, data []byte, output string, out, progressOut io.Writer) error {
	progress := func(page, total int) {
		fmt.Fprintf(progressOut, "Processing page %d/%d\n", page, total)
	}

	report, err := ingester.Ingest(ctx, domain.SourceDocument{Name: name, Data: data}, progress)
	if err != nil {
		if report != nil {
			fmt.Fprintf(progressOut, "Indexed %d of %d chunks before failing\n", report.Indexed, report.Chunks)
		}
		return fmt.Errorf("failed to ingest %s: %w", name, err)
	}

	if output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "Ingested %s\n", report.Source)
	fmt.Fprintf(out, "  Pages:   %d (%d via OCR)\n", report.Pages, report.OCRPages)
	fmt.Fprintf(out, "  Chunks:  %d\n", report.Chunks)
	fmt.Fprintf(out, "  Indexed: %d\n", report.Indexed)
	if report.ArchiveKey != "" {
		fmt.Fprintf(out, "  Archive: %s\n", report.ArchiveKey)
	}
	fmt.Fprintf(out, "  Took:    %s\n", report.Duration.Round(time.Millisecond))
	return nil
}
