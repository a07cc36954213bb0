package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func itemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage pantry items",
		Long: `List, search, add, and delete pantry items. Adding an item whose name
already exists adds the amounts together.`,
	}

	cmd.AddCommand(listItemsCmd())
	cmd.AddCommand(searchItemsCmd())
	cmd.AddCommand(addItemCmd())
	cmd.AddCommand(deleteItemCmd())

	return cmd
}

func printItems(out io.Writer, items []item) {
	if len(items) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No items found."))
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		headerStyle.Render("ID"),
		headerStyle.Render("Name"),
		headerStyle.Render("Amount"),
		headerStyle.Render("Categories"))
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		strings.Repeat("-", 36),
		strings.Repeat("-", 20),
		strings.Repeat("-", 8),
		strings.Repeat("-", 30))
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Amount, swatches(it.Categories))
	}
}

func listItemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := newClient().ListItems(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list items: %w", err)
			}
			printItems(cmd.OutOrStdout(), items)
			return nil
		},
	}
}

func searchItemsCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search items by name and category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var query string
			if len(args) == 1 {
				query = args[0]
			}
			items, err := newClient().SearchItems(cmd.Context(), query, category)
			if err != nil {
				return fmt.Errorf("failed to search items: %w", err)
			}
			printItems(cmd.OutOrStdout(), items)
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "only items tagged with this category")
	return cmd
}

func addItemCmd() *cobra.Command {
	var (
		amount     string
		categories []string
		persist    bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an item or increase its amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().AddItem(cmd.Context(), itemInput{
				Name:              args[0],
				Amount:            amount,
				Categories:        categories,
				PersistCategories: persist,
			})
			if err != nil {
				return fmt.Errorf("failed to add item: %w", err)
			}

			verb := "Added"
			if res.Action != "create" {
				verb = "Updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s) %s\n",
				successStyle.Render(verb), res.Item.Name, res.Item.Amount, swatches(res.Item.Categories))
			return nil
		},
	}

	cmd.Flags().StringVarP(&amount, "amount", "a", "1", "amount to add")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "category name (repeatable); unknown names get a color")
	cmd.Flags().BoolVar(&persist, "persist", false, "save unknown categories to the category store")
	return cmd
}

func deleteItemCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an item by id",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().DeleteItem(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete item: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Deleted "+args[0]))
			return nil
		},
	}
}
