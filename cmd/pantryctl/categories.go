package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "Manage item categories",
		Long:    `List, add, seed, and delete the categories items are tagged with.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())
	cmd.AddCommand(seedCategoriesCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories with their colors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := newClient().ListCategories(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(cats) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No categories found. Use 'pantryctl categories seed' to add the defaults."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\n",
				headerStyle.Render("Name"),
				headerStyle.Render("Color"),
				headerStyle.Render("Swatch"))
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				strings.Repeat("-", 20),
				strings.Repeat("-", 24),
				strings.Repeat("-", 10))
			for _, c := range cats {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Color, swatch(c))
			}
			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Long: `Create a category. Without --color the server assigns one that is
visually distinct from the colors already in use.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, created, err := newClient().CreateCategory(cmd.Context(), args[0], color)
			if err != nil {
				return fmt.Errorf("failed to add category: %w", err)
			}

			out := cmd.OutOrStdout()
			if !created {
				fmt.Fprintf(out, "%s %s\n", mutedStyle.Render("Already exists:"), swatch(cat))
				return nil
			}
			fmt.Fprintf(out, "%s %s %s\n", successStyle.Render("Added"), swatch(cat), mutedStyle.Render(cat.Color))
			return nil
		},
	}

	cmd.Flags().StringVar(&color, "color", "", "explicit color, e.g. \"hsl(120, 70%, 80%)\"")
	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"delete"},
		Short:   "Delete a category",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().DeleteCategory(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete category: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Deleted "+args[0]))
			return nil
		},
	}
}

func seedCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default categories that are missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := newClient().SeedCategories(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to seed categories: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(created) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("All default categories already exist."))
				return nil
			}
			fmt.Fprintf(out, "%s %s\n", successStyle.Render(fmt.Sprintf("Created %d:", len(created))), swatches(created))
			return nil
		},
	}
}
