// roletool inspects and maintains the bot's JSON state offline: list
// operations, rebuild the user projection, dump exit records. It operates on
// the same files as the bot, so run it only while the bot is stopped.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/projection"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataDir string

	root := &cobra.Command{
		Use:           "roletool",
		Short:         "Inspect and maintain the role bot's JSON state",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data", "data", "data directory")

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	root.AddCommand(newOpsCmd(&dataDir, log))
	root.AddCommand(newProjectCmd(&dataDir, log))
	root.AddCommand(newExitsCmd(&dataDir, log))
	return root
}

func newOpsCmd(dataDir *string, log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List operations in the log",
		RunE: func(cmd *cobra.Command, args []string) error {
			oplog := storage.NewOperationLog(filepath.Join(*dataDir, "roles.json"), log)
			entries := oplog.Load()
			if len(entries) == 0 {
				cmd.Println("operation log is empty")
				return nil
			}
			for _, e := range entries {
				if e.Op == nil {
					cmd.Println("  (malformed entry, preserved)")
					continue
				}
				users := 0
				for _, a := range e.Op.Assignments {
					users += len(a.AssignedUserIDs)
				}
				created := time.Unix(e.Op.CreatedAt, 0).UTC().Format(time.RFC3339)
				cmd.Printf("%s  created=%s  fade=%v  guilds=%d  users=%d\n",
					e.Op.ID, created, e.Op.Fade, len(e.Op.Assignments), users)
			}
			return nil
		},
	}
}

func newProjectCmd(dataDir *string, log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "project",
		Short: "Rebuild the user-centric projection from the operation log",
		RunE: func(cmd *cobra.Command, args []string) error {
			oplog := storage.NewOperationLog(filepath.Join(*dataDir, "roles.json"), log)
			store := projection.NewStore(filepath.Join(*dataDir, "user_roles.json"), log)
			idx, err := store.Rebuild(oplog)
			if err != nil {
				return err
			}
			cmd.Printf("projection rebuilt: %d user(s)\n", idx.Users())
			return nil
		},
	}
}

func newExitsCmd(dataDir *string, log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "exits",
		Short: "Dump the per-role exit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			exits := storage.NewExitList(filepath.Join(*dataDir, "removed"), log)
			all := exits.LoadAll()
			if len(all) == 0 {
				cmd.Println("no exit records")
				return nil
			}
			for roleID, users := range all {
				cmd.Printf("role %d: %d user(s)\n", roleID, len(users))
				for uid := range users {
					cmd.Printf("  %d\n", uid)
				}
			}
			return nil
		},
	}
}
