package cmd

import (
	"fmt"

	"github.com/liableapp/liable/internal/app"
	"github.com/spf13/cobra"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage planners",
	}

	cmd.AddCommand(userAddCmd())
	cmd.AddCommand(userCountCmd())
	return cmd
}

func userCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of registered planners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				count, err := a.UserService.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			})
		},
	}
}

func userAddCmd() *cobra.Command {
	var firstName, lastName, stripeCustomer string

	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Create a planner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				user, err := a.UserService.Create(cmd.Context(), firstName, lastName, args[0], stripeCustomer)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), user.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&firstName, "first-name", "", "planner first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "planner last name")
	cmd.Flags().StringVar(&stripeCustomer, "stripe-customer", "", "Stripe customer id charged for missed goals")
	cmd.MarkFlagRequired("first-name")
	return cmd
}
