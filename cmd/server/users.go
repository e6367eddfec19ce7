package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"couplechat/internal/config"
	"couplechat/internal/domain"
)

var newUser domain.User

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the user directory",
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Insert or update a user profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StoreDriver == config.DriverMemory {
			return errMemoryStore
		}
		if newUser.ID == "" || newUser.Username == "" {
			return errors.New("--id and --username are required")
		}
		st, err := openStores(cmd.Context(), cfg, log, true)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Users.Upsert(cmd.Context(), &newUser); err != nil {
			return err
		}
		log.Info("user saved", zap.String("user_id", newUser.ID))
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the user directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StoreDriver == config.DriverMemory {
			return errMemoryStore
		}
		st, err := openStores(cmd.Context(), cfg, log, false)
		if err != nil {
			return err
		}
		defer st.Close()

		users, err := st.Users.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", u.ID, u.Username, u.DisplayName())
		}
		return nil
	},
}

func init() {
	f := usersAddCmd.Flags()
	f.StringVar(&newUser.ID, "id", "", "user id")
	f.StringVar(&newUser.Username, "username", "", "unique username")
	f.StringVar(&newUser.Email, "email", "", "email address")
	f.StringVar(&newUser.FirstName, "first-name", "", "first name")
	f.StringVar(&newUser.LastName, "last-name", "", "last name")
	f.StringVar(&newUser.Avatar, "avatar", "", "avatar url")

	usersCmd.AddCommand(usersAddCmd, usersListCmd)
	rootCmd.AddCommand(usersCmd)
}
