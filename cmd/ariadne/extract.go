package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wehubfusion/Ariadne/pkg/extract"
)

var (
	raw       bool
	withTitle bool
	heading   string
	password  string
)

var pageCmd = &cobra.Command{
	Use:   "page [page-id]",
	Short: "Print a page as plain text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newService().Page(cmd.Context(), extract.PageRequest{
			Workspace: workspace,
			ID:        args[0],
			Raw:       raw,
			Title:     withTitle,
		})
		return printResult(cmd, result, err)
	},
}

var databaseCmd = &cobra.Command{
	Use:   "database [database-id]",
	Short: "Print the rows of a database as plain text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newService().Database(cmd.Context(), extract.DatabaseRequest{
			Workspace: workspace,
			ID:        args[0],
			Raw:       raw,
			Title:     heading,
		})
		return printResult(cmd, result, err)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Print every search hit as plain text",
	Long: `Searches the workspace and flattens each hit, oldest edit first.
Entries are separated by a line of dashes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newService().Search(cmd.Context(), extract.SearchRequest{
			Workspace: workspace,
			Query:     args[0],
			Raw:       raw,
			Password:  password,
		})
		return printResult(cmd, result, err)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{pageCmd, databaseCmd, searchCmd} {
		cmd.Flags().BoolVar(&raw, "raw", false, "print the upstream JSON instead of text")
	}
	pageCmd.Flags().BoolVar(&withTitle, "title", false, "prepend the page title")
	databaseCmd.Flags().StringVar(&heading, "title", "", "heading printed before the rows")
	searchCmd.Flags().StringVar(&password, "password", "", "search password, when one is configured")
}

func printResult(cmd *cobra.Command, result extract.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", extract.ErrorMessage(err), err)
	}

	out := cmd.OutOrStdout()
	if result.Raw {
		data, err := json.MarshalIndent(result.Items, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err = fmt.Fprintln(out, result.Content)
	return err
}
