package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/devlog/internal/identity"
)

type runtimeFunc func() *runtime

func providerArg(args []string) (identity.ProviderID, error) {
	return identity.ParseProvider(args[0])
}

func signInCmd(app runtimeFunc, out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:       "signin <apple|google|github>",
		Short:     "Sign in with a provider",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"apple", "google", "github"},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := providerArg(args)
			if err != nil {
				return err
			}
			rt := app()
			if cur := rt.orch.Current(); cur != nil {
				return fmt.Errorf("already signed in as %s; run devlog signout first", cur.Email)
			}
			id, err := rt.facade.SignIn(cmd.Context(), p)
			if err != nil {
				return report(rt, errOut, err)
			}
			printIdentity(out, id)
			return nil
		},
	}
}

func signOutCmd(app runtimeFunc, out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := app()
			if rt.orch.Current() == nil {
				fmt.Fprintln(out, "not signed in")
				return nil
			}
			if err := rt.facade.SignOut(cmd.Context()); err != nil {
				return report(rt, errOut, err)
			}
			fmt.Fprintln(out, "signed out")
			return nil
		},
	}
}

func linkCmd(app runtimeFunc, out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "link <apple|google|github>",
		Short: "Link another sign-in provider to the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := providerArg(args)
			if err != nil {
				return err
			}
			rt := app()
			if err := rt.facade.Link(cmd.Context(), p); err != nil {
				return report(rt, errOut, err)
			}
			printIdentity(out, rt.orch.Current())
			return nil
		},
	}
}

func unlinkCmd(app runtimeFunc, out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <apple|google|github>",
		Short: "Disconnect a sign-in provider from the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := providerArg(args)
			if err != nil {
				return err
			}
			rt := app()
			if err := rt.facade.Unlink(cmd.Context(), p); err != nil {
				return report(rt, errOut, err)
			}
			printIdentity(out, rt.orch.Current())
			return nil
		},
	}
}

func deleteAccountCmd(app runtimeFunc, out, errOut io.Writer) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete the account and all of its data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("account deletion is permanent; pass --yes to confirm")
			}
			rt := app()
			if err := rt.facade.DeleteAccount(cmd.Context()); err != nil {
				return report(rt, errOut, err)
			}
			fmt.Fprintln(out, "account deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}

func whoamiCmd(app runtimeFunc, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			printIdentity(out, app().orch.Current())
		},
	}
}

func watchCmd(app runtimeFunc, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print identity and connectivity changes until interrupted",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			rt := app()
			events, cancelEvents := rt.orch.Subscribe()
			defer cancelEvents()
			conn, cancelConn := rt.net.Subscribe()
			defer cancelConn()

			for {
				select {
				case <-cmd.Context().Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					fmt.Fprintf(out, "identity: %s\n", ev.State)
					if ev.Identity != nil {
						printIdentity(out, ev.Identity)
					}
				case up, ok := <-conn:
					if !ok {
						return
					}
					fmt.Fprintf(out, "connectivity: %s\n", onlineLabel(up))
				}
			}
		},
	}
}

func onlineLabel(up bool) string {
	if up {
		return "online"
	}
	return "offline"
}

func printIdentity(w io.Writer, id *identity.Identity) {
	if id == nil {
		fmt.Fprintln(w, "not signed in")
		return
	}
	linked := make([]string, 0, id.LinkedProviders.Len())
	for _, p := range id.LinkedProviders.Sorted() {
		linked = append(linked, p.Short())
	}
	fmt.Fprintf(w, "uid:       %s\n", id.UID)
	fmt.Fprintf(w, "email:     %s\n", id.Email)
	if id.DisplayName != "" {
		fmt.Fprintf(w, "name:      %s\n", id.DisplayName)
	}
	if id.CurrentProvider != "" {
		fmt.Fprintf(w, "signed in: %s\n", id.CurrentProvider.Short())
	}
	fmt.Fprintf(w, "linked:    %s\n", strings.Join(linked, ", "))
	if id.MetadataPending {
		fmt.Fprintln(w, "(profile still loading)")
	}
}
