package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"cryptic-hunt/internal/app"
	"cryptic-hunt/internal/config"
	"cryptic-hunt/internal/domain"
	"github.com/spf13/cobra"
)

// NewStandingsCmd prints the current leaderboard.
func NewStandingsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "standings",
		Short: "Print the current leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log.Level)
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			return printStandings(cmd.Context(), app.NewLeaderboardService(store, logger), cmd.OutOrStdout())
		},
	}
}

func printStandings(ctx context.Context, lb *app.LeaderboardService, out io.Writer) error {
	board, err := lb.Board(ctx)
	if err != nil {
		return err
	}
	if len(board.Standings) == 0 {
		fmt.Fprintln(out, "no players on the leaderboard yet")
		return nil
	}
	fmt.Fprintf(out, "%-4s %-24s %-6s %s\n", "POS", "PLAYER", "LEVEL", "REACHED")
	for _, st := range board.Standings {
		name := st.Username
		if medal := domain.Medal(st.Position); medal != "" {
			name = medal + " " + name
		}
		fmt.Fprintf(out, "%-4d %-24s %-6d %s\n", st.Position, name, st.Level, st.ReachedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintf(out, "last update: %s\n", board.UpdatedAt.Local().Format(time.DateTime))
	return nil
}
