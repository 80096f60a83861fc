package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/engine"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/store"
)

var (
	sessionID string
	userID    string
	approve   bool
	reject    bool
	feedback  string
)

// withEngine builds the engine for one command invocation and tears it down
// afterwards.
func withEngine(fn func(ctx context.Context, eng *engine.Engine) error) error {
	eng, st, err := engine.Build(settings, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), eng)
}

var planCmd = &cobra.Command{
	Use:   "plan <query>",
	Short: "Start a planning session from a natural-language trip request",
	Example: `  tripplanner plan "4-day trip to Jaipur from Delhi under ₹30k for 2, love food and history"
  tripplanner plan "somewhere quiet in the mountains, 5 days, solo, 20k"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			st, err := eng.Run(ctx, sessionID, userID, query, renderEvent)
			if err != nil {
				return err
			}
			renderState(st)
			fmt.Printf("\nsession: %s\n", st.SessionID)
			return nil
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Answer the pending approval gate and continue the run",
	Long: `Approve or reject whatever the session is waiting on. Feedback text
carries your pick: a destination name at the destination gate, a bundle id
(budget_saver, best_value, experience_max) at the bundle gate, or change
notes when rejecting the final itinerary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID == "" {
			return fmt.Errorf("--session is required")
		}
		if reject {
			approve = false
		}
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			st, err := eng.Resume(ctx, sessionID, approve, feedback, renderEvent)
			if err != nil {
				return err
			}
			renderState(st)
			return nil
		})
	},
}

var whatIfCmd = &cobra.Command{
	Use:   "what-if <delta>",
	Short: "Re-negotiate the bundles under a budget delta, without re-research",
	Example: `  tripplanner what-if +5000 --session <id>
  tripplanner what-if -3000 --session <id>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID == "" {
			return fmt.Errorf("--session is required")
		}
		var delta float64
		if _, err := fmt.Sscanf(strings.TrimPrefix(args[0], "+"), "%f", &delta); err != nil {
			return fmt.Errorf("delta must be a number, got %q", args[0])
		}
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			st, err := eng.ApplyWhatIf(ctx, sessionID, delta, renderEvent)
			if err != nil {
				return err
			}
			renderState(st)
			return nil
		})
	},
}

var bundleCmd = &cobra.Command{
	Use:   "bundle <bundle-id>",
	Short: "Lock in a negotiated bundle and build the itinerary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID == "" {
			return fmt.Errorf("--session is required")
		}
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			st, err := eng.SelectBundle(ctx, sessionID, args[0], renderEvent)
			if err != nil {
				return err
			}
			renderState(st)
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current state of a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID == "" {
			return fmt.Errorf("--session is required")
		}
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			st, err := eng.State(ctx, sessionID)
			if err != nil {
				return err
			}
			renderState(st)
			if settings.Debug {
				renderLatencyStats(st)
			}
			return nil
		})
	},
}

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Publish the finished trip under a shareable id",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID == "" {
			return fmt.Errorf("--session is required")
		}
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			tripID, err := eng.Share(ctx, sessionID)
			if err != nil {
				return err
			}
			fmt.Printf("shared: %s\nfetch it at GET /api/v1/shared/%s\n", tripID, tripID)
			return nil
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete sessions older than the configured TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(settings.DatabasePath, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := st.PurgeExpiredSessions(context.Background(), settings.SessionTTL)
		if err != nil {
			return err
		}
		fmt.Printf("purged %d expired sessions\n", n)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{planCmd, resumeCmd, whatIfCmd, bundleCmd, showCmd, shareCmd} {
		c.Flags().StringVarP(&sessionID, "session", "s", "", "session id")
	}
	planCmd.Flags().StringVarP(&userID, "user", "u", "", "user id for session history")
	resumeCmd.Flags().BoolVar(&approve, "approve", true, "approve the pending gate")
	resumeCmd.Flags().BoolVar(&reject, "reject", false, "reject the pending gate")
	resumeCmd.Flags().StringVarP(&feedback, "feedback", "f", "", "pick or change notes for the gate")

	rootCmd.AddCommand(planCmd, resumeCmd, whatIfCmd, bundleCmd, showCmd, shareCmd, purgeCmd)
}
