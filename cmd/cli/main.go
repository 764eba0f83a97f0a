// Package main is the entry point for the dandi-sql CLI. The CLI runs the
// admission pipeline offline: it validates raw SQL, compiles structured
// query documents, and prints the registry, all without a database.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bendichter/dandi-sql/internal/complexity"
	"github.com/bendichter/dandi-sql/internal/domain"
	"github.com/bendichter/dandi-sql/internal/jsonquery"
	"github.com/bendichter/dandi-sql/internal/schema"
	"github.com/bendichter/dandi-sql/internal/sqlguard"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var schemaFile string

	rootCmd := &cobra.Command{
		Use:           "dandi-sql",
		Short:         "DANDI catalog query safety tools",
		Long:          "Validate raw SQL and compile structured query documents against the catalog whitelist, offline.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&schemaFile, "schema", "", "YAML schema registry (default: built-in DANDI catalog)")

	loadRegistry := func() (*schema.Registry, error) {
		if schemaFile != "" {
			return schema.LoadYAML(schemaFile)
		}
		return schema.Default(), nil
	}

	rootCmd.AddCommand(newValidateCmd(loadRegistry))
	rootCmd.AddCommand(newCompileCmd(loadRegistry))
	rootCmd.AddCommand(newSchemaCmd(loadRegistry))
	return rootCmd
}

// readInput returns the contents of -f FILE, "-" meaning stdin, or the
// joined positional arguments.
func readInput(file string, args []string) (string, error) {
	switch {
	case file == "-":
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	case file != "":
		b, err := os.ReadFile(file)
		return string(b), err
	case len(args) > 0:
		out := args[0]
		for _, a := range args[1:] {
			out += " " + a
		}
		return out, nil
	}
	return "", fmt.Errorf("supply a query as an argument or with -f")
}

func newValidateCmd(loadRegistry func() (*schema.Registry, error)) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate [sql]",
		Short: "Validate a raw SQL query and print the secured statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(file, args)
			if err != nil {
				return err
			}
			reg, err := loadRegistry()
			if err != nil {
				return err
			}

			v := sqlguard.NewValidator(reg, complexity.NewDefaultScorer(), sqlguard.DefaultConfig())
			verdict, err := v.Validate(input)
			if err != nil {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"valid":   false,
					"kind":    string(domain.KindOf(err)),
					"message": err.Error(),
				})
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"valid":       true,
				"secured_sql": verdict.SecuredSQL,
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the SQL from a file (- for stdin)")
	return cmd
}

func newCompileCmd(loadRegistry func() (*schema.Registry, error)) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "compile [json]",
		Short: "Compile a structured query document and print the generated SQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(file, args)
			if err != nil {
				return err
			}
			reg, err := loadRegistry()
			if err != nil {
				return err
			}

			var spec jsonquery.Spec
			if err := json.Unmarshal([]byte(input), &spec); err != nil {
				return fmt.Errorf("parse query document: %w", err)
			}

			c := jsonquery.NewCompiler(reg, complexity.NewDefaultScorer(), jsonquery.DefaultConfig())
			plan, err := c.Compile(spec)
			if err != nil {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"valid":   false,
					"kind":    string(domain.KindOf(err)),
					"message": err.Error(),
				})
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"valid":            true,
				"sql":              plan.SQL,
				"args":             plan.Args,
				"count_sql":        plan.CountSQL,
				"query_complexity": plan.Complexity,
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the document from a file (- for stdin)")
	return cmd
}

func newSchemaCmd(loadRegistry func() (*schema.Registry, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the queryable models and whitelisted tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}

			type relOut struct {
				Name        string `json:"name"`
				Target      string `json:"target"`
				Cardinality string `json:"cardinality"`
			}
			type modelOut struct {
				Model         string   `json:"model"`
				Table         string   `json:"table"`
				Fields        []string `json:"fields"`
				Relationships []relOut `json:"relationships,omitempty"`
			}

			models := make([]modelOut, 0)
			for _, e := range reg.Entities() {
				m := modelOut{Model: e.Name, Table: e.Table}
				for _, c := range e.Columns {
					m.Fields = append(m.Fields, c.Name)
				}
				for _, rel := range e.Relationships {
					m.Relationships = append(m.Relationships, relOut{
						Name: rel.Name, Target: rel.Target, Cardinality: string(rel.Cardinality),
					})
				}
				models = append(models, m)
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"models":     models,
				"tables":     reg.AllowedTables(),
				"operators":  jsonquery.Operators(),
				"aggregates": jsonquery.Aggregates(),
			})
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
