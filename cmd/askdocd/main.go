package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/askdoc/internal/cli"
	"github.com/cloo-solutions/askdoc/internal/cli/app"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "askdocd",
		Short: "askdoc daemon and CLI",
		Long:  "askdoc indexes PDF documents and answers questions about them with retrieval-augmented generation",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(app.ServeCmd())
	rootCmd.AddCommand(app.IngestCmd())
	rootCmd.AddCommand(app.ChatCmd())
	rootCmd.AddCommand(app.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
