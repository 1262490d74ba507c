package users

import (
	"bufio"
	"fmt"
	"net/mail"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/cmd/cmdutil"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/config"
)

var (
	emailFlag    string
	usernameFlag string
	passwordFlag string
	roleFlag     string
	stdinFlag    bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a local password account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if usernameFlag == "" {
			return fmt.Errorf("--username flag is required")
		}
		if roleFlag != auth.RoleUser && roleFlag != auth.RoleAdmin {
			return fmt.Errorf("--role must be %q or %q", auth.RoleUser, auth.RoleAdmin)
		}

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		if emailFlag != "" {
			if _, err := mail.ParseAddress(emailFlag); err != nil {
				return fmt.Errorf("invalid email format: %w", err)
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		bundle, err := cmdutil.NewIAMServiceBundle(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		user, err := bundle.Service.CreateLocalUser(cmd.Context(), usernameFlag, emailFlag, password, roleFlag)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		log.WithFields(log.Fields{"user_id": user.ID, "role": user.Role}).Info("user created")
		fmt.Printf("Created user %s (%s) with role %s\n", user.Username, user.ID, user.Role)
		return nil
	},
}
