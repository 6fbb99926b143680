// cmd/courtctl/commands.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codr1/courtbook/internal/api/authz"
	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/scheduler"
	"github.com/codr1/courtbook/internal/schedule"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(hashTokenCmd)

	slotsCmd.Flags().String("date", "", "date to inspect, YYYY-MM-DD (default today)")
	slotsCmd.Flags().Int64("court", 0, "court id (default every configured court)")
	purgeCmd.Flags().Int("retention-days", -1, "override scheduler.cancelled_retention_days")
}

var migrateCmd = &cobra.Command{
	Use:       "migrate up|down|version",
	Short:     "Apply, roll back or inspect the schema migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		conn, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		m, err := db.Migrator(conn)
		if err != nil {
			return err
		}

		switch args[0] {
		case "up":
			err = m.Up()
		case "down":
			err = m.Down()
		case "version":
			version, dirty, verr := m.Version()
			if errors.Is(verr, migrate.ErrNilVersion) {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied")
				return nil
			}
			if verr != nil {
				return fmt.Errorf("get version: %w", verr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %d, Dirty: %v\n", version, dirty)
			return nil
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate %s: %w", args[0], err)
		}
		log.Info().Str("direction", args[0]).Msg("Migrations applied")
		return nil
	},
}

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Print the availability of a day as customers see it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := db.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		rawDate, _ := cmd.Flags().GetString("date")
		courtID, _ := cmd.Flags().GetInt64("court")

		clock := schedule.SystemClock{}
		date := clock.Now().In(cfg.Location())
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, cfg.Location())
		if rawDate != "" {
			if date, err = models.ParseDate(rawDate, cfg.Location()); err != nil {
				return fmt.Errorf("--date: %w", err)
			}
		}

		courts := cfg.Club.Courts
		if courtID != 0 {
			courts = []models.Court{{ID: courtID, Label: fmt.Sprintf("Court %d", courtID)}}
		}

		loader := &availability.Loader{
			Schedules:    db.NewClubConfigStore(database),
			Reservations: db.NewReservationStore(database),
			Blocks:       db.NewBlockStore(database),
			Recurring:    db.NewRecurringBlockStore(database),
			Defaults:     cfg.Club.Schedule(),
			Clock:        clock,
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		snap, err := loader.Load(ctx, date, courtID)
		if err != nil {
			return err
		}
		engine := availability.NewEngine(snap, clock)
		for _, warning := range engine.Warnings() {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
		}
		return printDay(cmd.OutOrStdout(), models.FormatDate(date), courts, engine)
	},
}

func printDay(out io.Writer, date string, courts []models.Court, engine *availability.Engine) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t", date)
	for _, court := range courts {
		fmt.Fprintf(tw, "%s\t", court.Label)
	}
	fmt.Fprintln(tw)

	days := make([][]availability.SlotStatus, len(courts))
	for i, court := range courts {
		days[i] = engine.Day(court.ID, "")
	}
	for row, slot := range engine.Snapshot().Slots {
		fmt.Fprintf(tw, "%s\t", slot.Label())
		for i := range courts {
			status := days[i][row]
			cell := string(status.State)
			if status.Label != "" && status.State == availability.StateBlocked {
				cell += " (" + status.Label + ")"
			}
			fmt.Fprintf(tw, "%s\t", cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cancelled reservations older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := db.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		job := scheduler.PurgeJob{
			Store:         db.NewReservationStore(database),
			RetentionDays: cfg.Scheduler.CancelledRetentionDays,
			Location:      cfg.Location(),
		}
		if days, _ := cmd.Flags().GetInt("retention-days"); days >= 0 {
			job.RetentionDays = days
		}

		n, err := job.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d cancelled reservations before %s\n", n, job.Cutoff().Format(time.DateOnly))
		return nil
	},
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Print the bcrypt hash to put in ADMIN_TOKEN_HASH",
	Long: `Hashes the admin token given as argument, or read from stdin when
no argument is given, so the plain token never lands in the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string
		if len(args) == 1 {
			token = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read token: %w", err)
			}
			token = strings.TrimSpace(line)
		}

		hash, err := authz.HashToken(token)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
