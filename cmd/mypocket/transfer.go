package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mypocket/mypocket/pkg/mypocket/auth"
	"github.com/mypocket/mypocket/pkg/mypocket/database"
	"github.com/mypocket/mypocket/pkg/mypocket/importexport"
	"github.com/spf13/cobra"
)

func newImportCmd(load configLoader) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import links from a CSV file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			user, err := auth.FindUserByEmail(cmd.Context(), db, email)
			if err != nil {
				return err
			}

			result, err := importexport.NewReconciler(db, nil).Import(cmd.Context(), user.ID, string(data))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d links (%d rows read)\n", result.Imported, result.Rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "owner of the imported links")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newExportCmd(load configLoader) *cobra.Command {
	var email, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's links as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			user, err := auth.FindUserByEmail(cmd.Context(), db, email)
			if err != nil {
				return err
			}

			content, err := importexport.NewReconciler(db, nil).Export(cmd.Context(), user.ID)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), content)
				return err
			}
			return os.WriteFile(output, []byte(content+"\n"), 0o644)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "owner of the links")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.MarkFlagRequired("email")
	return cmd
}
