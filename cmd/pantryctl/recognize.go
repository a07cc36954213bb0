package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func recognizeCmd() *cobra.Command {
	var (
		confirm bool
		persist bool
	)

	cmd := &cobra.Command{
		Use:   "recognize <file|->",
		Short: "Preview recognition output and optionally save it",
		Long: `Send the raw text returned by an image recognition service to the
server. The server parses it, assigns colors to unknown categories, and
holds the result as a pending batch. With --confirm the batch is saved
right away.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			client := newClient()
			b, err := client.PreviewRecognition(cmd.Context(), string(raw))
			if err != nil {
				return fmt.Errorf("failed to preview recognition: %w", err)
			}

			out := cmd.OutOrStdout()
			printBatch(out, b)

			if !confirm {
				fmt.Fprintf(out, "%s re-run with --confirm, or POST /api/recognitions/%s/confirm\n",
					mutedStyle.Render("Not saved:"), b.ID)
				return nil
			}

			res, err := client.ConfirmRecognition(cmd.Context(), b.ID, persist)
			if err != nil {
				return fmt.Errorf("failed to confirm batch %s: %w", b.ID, err)
			}
			fmt.Fprintf(out, "%s %d item(s), %d skipped\n", successStyle.Render("Saved"), len(res.Items), res.Skipped)
			if len(res.PersistedCategories) > 0 {
				fmt.Fprintf(out, "%s %s\n", successStyle.Render("New categories:"), swatches(res.PersistedCategories))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "save the batch after previewing it")
	cmd.Flags().BoolVar(&persist, "persist", false, "with --confirm, save new categories to the category store")
	return cmd
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return raw, nil
}

func printBatch(out io.Writer, b batch) {
	fmt.Fprintf(out, "%s %s\n", headerStyle.Render("Batch"), b.ID)
	if len(b.Items) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No items recognized."))
	}
	for _, it := range b.Items {
		fmt.Fprintf(out, "  %s (%s) %s\n", it.Name, it.Amount, swatches(it.Categories))
	}
	if len(b.CreatedCategories) > 0 {
		fmt.Fprintf(out, "%s %s\n", mutedStyle.Render("New categories:"), swatches(b.CreatedCategories))
	}
	if b.Dropped > 0 {
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("dropped %d malformed entries", b.Dropped)))
	}
}
