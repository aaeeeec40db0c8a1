package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	app "github.com/okian/shortlist/internal/app"
	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/policy"
)

func newExportRoundCommand(e *env) *cobra.Command {
	var (
		sortBy string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export-round <round-id>",
		Short: "Export the evaluations of a round as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid round id %q", args[0])
			}
			by := model.ExportSort(sortBy)
			if !by.Valid() {
				return fmt.Errorf("unknown sort %q (want name or score)", sortBy)
			}
			return e.withService(cmd.Context(), func(svc *app.Service) error {
				doc, err := svc.ExportRoundCSV(cmd.Context(), policy.System, id, by)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(doc.Data)
					return err
				}
				if err := os.WriteFile(output, doc.Data, 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", output, len(doc.Data))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort-by", string(model.SortByName), "Row order: name or score")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")

	return cmd
}
