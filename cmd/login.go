package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/vocabsync/internal/dictionary"
	"github.com/JakeFAU/vocabsync/internal/progress"
	"github.com/JakeFAU/vocabsync/internal/vocab"
)

var errNotLoggedIn = errors.New("session is not logged in")

func newLoginCmd() *cobra.Command {
	var (
		printCredential bool
		savePath        string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check that the configured session cookies are still logged in",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App) error {
			out := cmd.OutOrStdout()
			var saveErr error
			ok, err := appInstance.CheckLogin(cmd.Context(), progress.LoginFuncs{
				OnLoggedIn: func(credential string) {
					fmt.Fprintln(out, "logged in")
					if printCredential {
						fmt.Fprintln(out, credential)
					}
					if savePath != "" {
						saveErr = saveCredential(savePath, credential)
					}
				},
				OnLoginFailed: func() {
					fmt.Fprintln(out, "not logged in")
				},
			})
			if err != nil {
				return fmt.Errorf("login check: %w", err)
			}
			if !ok {
				return errNotLoggedIn
			}
			if saveErr != nil {
				return fmt.Errorf("save credential: %w", saveErr)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&printCredential, "print", false, "print the session cookies as JSON when logged in")
	cmd.Flags().StringVar(&savePath, "save", "", "write the session cookies to this file when logged in")
	return cmd
}

func saveCredential(path, serialized string) error {
	cred, err := vocab.ParseCredential([]byte(serialized))
	if err != nil {
		return err
	}
	return dictionary.SaveCredential(path, cred)
}
