// Package cli holds helpers shared by the askdocd commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvAnnotation lists, comma separated, the environment keys a command reads.
const EnvAnnotation = "askdoc/env"

const helpJSONFlag = "help-json"

// FlagSchema describes one flag of a command.
type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Inherited   bool   `json:"inherited,omitempty"`
}

// CommandSchema describes a command and its visible subcommands.
type CommandSchema struct {
	Name        string          `json:"name"`
	Path        string          `json:"path"`
	Usage       string          `json:"usage,omitempty"`
	Description string          `json:"description,omitempty"`
	Long        string          `json:"long,omitempty"`
	Aliases     []string        `json:"aliases,omitempty"`
	Env         []string        `json:"env,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

// GenerateSchema walks cmd and its visible subcommands.
func GenerateSchema(cmd *cobra.Command) CommandSchema {
	schema := CommandSchema{
		Name:        cmd.Name(),
		Path:        cmd.CommandPath(),
		Usage:       cmd.UseLine(),
		Description: cmd.Short,
		Long:        cmd.Long,
		Aliases:     cmd.Aliases,
		Env:         envKeys(cmd),
		Flags:       commandFlags(cmd),
	}

	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		schema.Subcommands = append(schema.Subcommands, GenerateSchema(sub))
	}
	return schema
}

func envKeys(cmd *cobra.Command) []string {
	raw := cmd.Annotations[EnvAnnotation]
	if raw == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func commandFlags(cmd *cobra.Command) []FlagSchema {
	var flags []FlagSchema
	add := func(inherited bool) func(*pflag.Flag) {
		return func(f *pflag.Flag) {
			if f.Hidden || f.Name == "help" || f.Name == helpJSONFlag {
				return
			}
			_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
			flags = append(flags, FlagSchema{
				Name:        f.Name,
				Shorthand:   f.Shorthand,
				Type:        f.Value.Type(),
				Default:     f.DefValue,
				Description: f.Usage,
				Required:    required,
				Inherited:   inherited,
			})
		}
	}
	cmd.LocalFlags().VisitAll(add(false))
	cmd.InheritedFlags().VisitAll(add(true))
	return flags
}

// WriteSchema encodes the schema of cmd as indented JSON.
func WriteSchema(w io.Writer, cmd *cobra.Command) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(GenerateSchema(cmd))
}

// PrintSchema writes the schema of cmd to stdout and exits.
func PrintSchema(cmd *cobra.Command) {
	if err := WriteSchema(os.Stdout, cmd); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// AddHelpJSONFlag registers --help-json on cmd and everything below it.
func AddHelpJSONFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool(helpJSONFlag, false, "Print the command schema as JSON")
}

// CheckHelpJSON prints the schema and exits when os.Args carries
// --help-json. Call it before Execute so argument validation cannot fail first.
func CheckHelpJSON(rootCmd *cobra.Command) {
	if target, ok := HelpJSONTarget(rootCmd, os.Args); ok {
		PrintSchema(target)
	}
}

// HelpJSONTarget returns the command addressed by args when they carry
// --help-json. args[0] is the program name.
func HelpJSONTarget(rootCmd *cobra.Command, args []string) (*cobra.Command, bool) {
	if len(args) < 2 {
		return nil, false
	}
	var path []string
	found := false
	for _, arg := range args[1:] {
		if arg == "--"+helpJSONFlag {
			found = true
			break
		}
		if !strings.HasPrefix(arg, "-") {
			path = append(path, arg)
		}
	}
	if !found {
		return nil, false
	}

	target := rootCmd
	for _, name := range path {
		next := subcommand(target, name)
		if next == nil {
			break
		}
		target = next
	}
	return target, true
}

func subcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name || sub.HasAlias(name) {
			return sub
		}
	}
	return nil
}
