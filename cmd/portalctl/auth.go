package main

import (
	"bufio"
	"fmt"
	"strings"

	"student-portal/models"
	"student-portal/session"
	"student-portal/utils"

	"github.com/spf13/cobra"
)

func loginCmd(e *env) *cobra.Command {
	var req models.LoginRequest
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with your portal credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				req.Password = strings.TrimSpace(line)
			}
			if err := utils.ValidateStruct(&req); err != nil {
				return err
			}

			ctx := cmd.Context()
			res, err := e.app.Client.Login(ctx, req)
			if err != nil {
				return err
			}
			if err := session.SaveLogin(ctx, e.app.Store, *res); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}
			e.app.Guard.Reset()

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", res.Profile.Name, res.Profile.Reg)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "Registration number or username")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Password (prompted when omitted)")
	cmd.MarkFlagRequired("username")

	return cmd
}

func logoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := e.app.Client.Logout(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "backend logout failed: %v\n", err)
			}
			if err := session.Logout(ctx, e.app.Store); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in student",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := session.LoadProfile(cmd.Context(), e.app.Store)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if p == nil {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			fmt.Fprintf(out, "Name:  %s\n", p.Name)
			fmt.Fprintf(out, "Reg:   %s\n", p.Reg)
			if p.Hall != "" {
				fmt.Fprintf(out, "Hall:  %s\n", p.Hall)
			}
			if p.Email != "" {
				fmt.Fprintf(out, "Email: %s\n", p.Email)
			}
			return nil
		},
	}
}
