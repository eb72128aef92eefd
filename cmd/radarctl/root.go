package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"radarsync/internal/app"
	"radarsync/internal/config"
	"radarsync/internal/models"
	"radarsync/internal/store/backend"
)

// rootCommand creates the command tree. Each invocation loads its own
// configuration so tests can run commands side by side.
func rootCommand() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "radarctl",
		Short:         "Speed camera dataset tools",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("RADARSYNC_CONFIG"), "path to a radarsync.yaml file")

	open := func(cmd *cobra.Command) (*app.App, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		return app.New(cmd.Context(), cfg)
	}

	rootCmd.AddCommand(
		importCommand(open),
		statusCommand(open),
		tallyCommand(open),
		voteCommand(open),
		migrateCommand(open),
	)
	return rootCmd
}

type opener func(cmd *cobra.Command) (*app.App, error)

func importCommand(open opener) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a user CSV snapshot",
		Long: "Reads FILE (longitude,latitude,description[@speed] per line) and reconciles it " +
			"as the complete user list. Records missing from FILE are deactivated. An upload " +
			"identical to the previous one is skipped unless --force is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Importer().Import(cmd.Context(), content, args[0], force)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "import even when the content is unchanged")
	return cmd
}

func statusCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last user CSV import and active record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Importer().Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func tallyCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "tally RECORD_ID",
		Short: "Show the crowd vote tally of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Voter().Tally(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func voteCommand(open opener) *cobra.Command {
	var (
		user         string
		light, heavy int
	)
	cmd := &cobra.Command{
		Use:   "vote RECORD_ID",
		Short: "Record a user's speed limit vote for a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vote := models.SpeedVote{UserID: user, RecordID: args[0]}
			if cmd.Flags().Changed("light") {
				vote.SpeedLight = &light
			}
			if cmd.Flags().Changed("heavy") {
				vote.SpeedHeavy = &heavy
			}

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Voter().Cast(cmd.Context(), vote)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "voting user ID")
	cmd.Flags().IntVar(&light, "light", 0, "speed limit for light vehicles in km/h")
	cmd.Flags().IntVar(&heavy, "heavy", 0, "speed limit for heavy vehicles in km/h")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func migrateCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Opening the store applies migrations.
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			version, dirty, err := backend.SchemaVersion(a.Store)
			if errors.Is(err, backend.ErrNoSchema) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s store has no schema\n", a.Config.Database.Driver)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
