package admins

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/cmd/cmdutil"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/config"
)

// AdminsCmd groups the bootstrap admin operations
var AdminsCmd = &cobra.Command{
	Use:   "admins",
	Short: "Manage the bootstrap admin accounts",
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the configured bootstrap admins",
	Long: `Creates the admin accounts listed under bootstrap.admin1 and bootstrap.admin2.
Existing usernames are left untouched and accounts without a password are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		bundle, err := cmdutil.NewIAMServiceBundle(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		created := bundle.Service.EnsureAdmins(cmd.Context(), cfg.Bootstrap.Admins)
		fmt.Printf("Seeded %d admin account(s)\n", created)
		return nil
	},
}

func init() {
	AdminsCmd.AddCommand(seedCmd)
}
