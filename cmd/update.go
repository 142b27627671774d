package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camrelay/internal/updater"
)

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var (
		apply      bool
		rollback   bool
		prerelease bool
		repo       string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for or install a newer camrelay release",
		Long: `Without flags, reports whether a newer release exists.
--apply replaces the running binary (a backup is kept), --rollback restores
the backup. Restart the camrelay service afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if apply && rollback {
				return errors.New("--apply and --rollback are mutually exclusive")
			}

			upd, err := updater.New(updater.Options{Repository: repo, Prerelease: prerelease})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runUpdate(ctx, cmd.OutOrStdout(), upd, apply, rollback)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Download and install the latest release")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the previously installed binary")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().StringVar(&repo, "repo", updater.DefaultRepository, "GitHub repository to fetch releases from")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Network timeout")
	return cmd
}

type binaryUpdater interface {
	Check(ctx context.Context) (*updater.UpdateInfo, error)
	Apply(ctx context.Context) (*updater.UpdateInfo, error)
	Rollback() (string, error)
}

func runUpdate(ctx context.Context, out io.Writer, upd binaryUpdater, apply, rollback bool) error {
	switch {
	case rollback:
		ver, err := upd.Rollback()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "restored %s, restart the service to use it\n", ver)
		return nil

	case apply:
		info, err := upd.Apply(ctx)
		if errors.Is(err, &updater.Error{Code: updater.ErrCodeNoUpdate}) {
			fmt.Fprintf(out, "already up to date (%s)\n", info.CurrentVersion)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "updated %s -> %s, restart the service to use it\n", info.CurrentVersion, info.LatestVersion)
		return nil

	default:
		info, err := upd.Check(ctx)
		if err != nil {
			return err
		}
		if !info.UpdateAvailable {
			fmt.Fprintf(out, "up to date (%s)\n", info.CurrentVersion)
			return nil
		}
		fmt.Fprintf(out, "update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
		if info.ReleaseURL != "" {
			fmt.Fprintln(out, info.ReleaseURL)
		}
		return nil
	}
}
