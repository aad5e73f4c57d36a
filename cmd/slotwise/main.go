package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/christopherklint97/slotwise/internal/calendar"
	"github.com/christopherklint97/slotwise/internal/config"
	"github.com/christopherklint97/slotwise/internal/inbox"
	"github.com/christopherklint97/slotwise/internal/scheduler"
	"github.com/christopherklint97/slotwise/internal/store"
	"github.com/christopherklint97/slotwise/internal/timeline"
	"github.com/christopherklint97/slotwise/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:          "slotwise",
	Short:        "Turn location tracks into categorized time slots",
	Long:         "slotwise commits provisional time slots produced from location and motion tracks, learns which places mean which activity, and keeps a durable timeline of your days.",
	SilenceUsage: true,
}

var trackCmd = &cobra.Command{
	Use:   "track <latitude> <longitude>",
	Short: "Buffer a raw location observation",
	Args:  cobra.ExactArgs(2),
	RunE:  runTrack,
}

var commitCmd = &cobra.Command{
	Use:   "commit <batch.json>",
	Short: "Commit a batch file of provisional slots",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommit,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon that commits inbox batches",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the slots of a day",
	RunE:  runStatus,
}

var editCmd = &cobra.Command{
	Use:   "edit <slot-id> [category]",
	Short: "Recategorize a committed slot",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runEdit,
}

var addCmd = &cobra.Command{
	Use:   "add [category]",
	Short: "Start a new slot with a category you choose",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAdd,
}

var guessesCmd = &cobra.Command{
	Use:   "guesses",
	Short: "List learned smart guesses",
	RunE:  runGuesses,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export slots as an iCalendar file",
	RunE:  runExport,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of batch files",
	RunE:  runSchema,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

var configSetCmd = &cobra.Command{
	Use:   "set <section.key> <value>",
	Short: "Set a single config value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	trackCmd.Flags().String("at", "", "When the observation was made (default now)")
	statusCmd.Flags().String("date", "", "Day to show, e.g. 2024-03-14 or \"yesterday\" (default today)")
	addCmd.Flags().String("at", "", "When the slot started, e.g. \"20 minutes ago\" (default now)")
	exportCmd.Flags().String("ics", "-", "Output file, - for stdout")
	exportCmd.Flags().String("date", "", "First day to export (default today)")
	exportCmd.Flags().Int("days", 1, "Number of days to export")

	configCmd.AddCommand(configSetCmd)

	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(guessesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTrack(cmd *cobra.Command, args []string) error {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid longitude: %w", err)
	}
	loc := timeline.Location{Latitude: lat, Longitude: lon}
	if !loc.Valid() {
		return fmt.Errorf("location %s is out of range", loc)
	}

	atFlag, _ := cmd.Flags().GetString("at")
	at, err := parseWhen(atFlag, time.Now())
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ev, err := store.NewLocationEvent(at, loc)
	if err != nil {
		return err
	}
	seq, err := a.db.AppendTrackEvent(cmd.Context(), ev)
	if err != nil {
		return fmt.Errorf("buffering event: %w", err)
	}

	fmt.Printf("Buffered location %s at %s (#%d)\n", loc, at.Format("15:04"), seq)
	return nil
}

func runCommit(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.scheduler()
	if err != nil {
		return err
	}

	res, err := sched.CommitFile(cmd.Context(), args[0])
	fmt.Println(tui.RenderCommit(res, err))
	return err
}

func runStart(cmd *cobra.Command, args []string) error {
	if pid, err := scheduler.ReadPID(); err == nil && processAlive(pid) {
		return fmt.Errorf("slotwise is already running (PID %d)", pid)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.scheduler()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	a.serveMetrics(ctx)

	fmt.Printf("slotwise daemon started (inbox: %s, interval: %s)\n", displayInboxDir(a.cfg), a.cfg.Inbox.Interval())
	return sched.Run(ctx)
}

func runStop(cmd *cobra.Command, args []string) error {
	pid, err := scheduler.ReadPID()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending stop signal: %w", err)
	}

	fmt.Printf("Sent stop signal to slotwise (PID %d)\n", pid)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	dateFlag, _ := cmd.Flags().GetString("date")
	now := time.Now()
	day, err := parseWhen(dateFlag, now)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	slots, err := a.db.SlotsForDay(ctx, day)
	if err != nil {
		return fmt.Errorf("fetching slots: %w", err)
	}
	pending, err := a.db.PendingTrackEvents(ctx)
	if err != nil {
		return fmt.Errorf("counting buffered events: %w", err)
	}
	last, err := a.db.LastKnownLocation(ctx)
	if err != nil {
		return fmt.Errorf("reading last location: %w", err)
	}

	status := tui.DayStatus{
		Day:           day,
		Slots:         slots,
		Now:           now,
		PendingEvents: pending,
		LastLocation:  last,
	}
	if pid, err := scheduler.ReadPID(); err == nil && processAlive(pid) {
		status.DaemonPID = pid
	}

	fmt.Println(tui.RenderDay(status))
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid slot id %q", args[0])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	slot, err := a.db.GetSlot(ctx, id)
	if err != nil {
		return err
	}

	var category timeline.Category
	if len(args) == 2 {
		category, err = timeline.ParseCategory(args[1])
		if err != nil {
			return err
		}
	} else {
		picked, ok, err := pickCategory(tui.NewSlotPickerApp(*slot))
		if err != nil || !ok {
			return err
		}
		category = picked
	}

	if category == slot.Category {
		fmt.Printf("Slot %d is already %s.\n", id, category)
		return nil
	}
	if err := a.sink.Recategorize(ctx, id, category); err != nil {
		return err
	}

	fmt.Printf("Slot %d: %s → %s\n", id, slot.Category, category)
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	atFlag, _ := cmd.Flags().GetString("at")
	start, err := parseWhen(atFlag, time.Now())
	if err != nil {
		return err
	}

	var category timeline.Category
	if len(args) == 1 {
		category, err = timeline.ParseCategory(args[0])
		if err != nil {
			return err
		}
	} else {
		picked, ok, err := pickCategory(tui.NewCategoryPickerApp("What are you doing?", timeline.Unknown))
		if err != nil || !ok {
			return err
		}
		category = picked
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	slot, err := a.sink.AddSlot(cmd.Context(), category, start)
	if err != nil {
		return err
	}

	where := "unknown location"
	if slot.Location != nil {
		where = slot.Location.String()
	}
	fmt.Printf("Started slot %d: %s at %s (%s)\n", slot.ID, category, slot.Start.Local().Format("15:04"), where)
	return nil
}

func pickCategory(picker *tui.CategoryPickerApp) (timeline.Category, bool, error) {
	if _, err := tea.NewProgram(picker).Run(); err != nil {
		return "", false, fmt.Errorf("running TUI: %w", err)
	}
	result := picker.GetResult()
	if result == nil || result.Canceled {
		fmt.Println("Canceled.")
		return "", false, nil
	}
	return result.Category, true, nil
}

func runGuesses(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	guesses, err := a.memory.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing guesses: %w", err)
	}
	fmt.Println(tui.RenderGuesses(guesses, a.memory.Policy()))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("ics")
	dateFlag, _ := cmd.Flags().GetString("date")
	days, _ := cmd.Flags().GetInt("days")
	if days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}

	now := time.Now()
	day, err := parseWhen(dateFlag, now)
	if err != nil {
		return err
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, days)

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	slots, err := a.db.SlotsBetween(cmd.Context(), from, to)
	if err != nil {
		return fmt.Errorf("fetching slots: %w", err)
	}
	if len(slots) == 0 {
		fmt.Fprintln(os.Stderr, "No slots to export.")
		return nil
	}

	w := os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	if err := calendar.Export(w, slots, now); err != nil {
		return err
	}
	if out != "-" {
		fmt.Printf("Exported %d slots to %s\n", len(slots), out)
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := inbox.Schema()
	if err != nil {
		return fmt.Errorf("generating schema: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Create default config file
		cfg := config.DefaultConfig()
		data := fmt.Sprintf(`[storage]
# path = "/path/to/slotwise.db"

[smart_guess]
distance_meters = %g
strike_threshold = %d
cache_ttl_seconds = %d

[inbox]
# dir = "/path/to/inbox"
interval_seconds = %d

[metrics]
enabled = %t
listen_addr = "%s"
queue_size = %d

[log]
level = "%s"
format = "%s"
`,
			cfg.SmartGuess.DistanceMeters,
			cfg.SmartGuess.StrikeThreshold,
			cfg.SmartGuess.CacheTTLSeconds,
			cfg.Inbox.IntervalSeconds,
			cfg.Metrics.Enabled,
			cfg.Metrics.ListenAddr,
			cfg.Metrics.QueueSize,
			cfg.Log.Level,
			cfg.Log.Format,
		)
		if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(editor, []string{editor, configPath}, &proc)
	if err != nil {
		// If editor fails, just print the path
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := config.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Set %s = %s\n", args[0], args[1])
	return nil
}

func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

func displayInboxDir(cfg *config.Config) string {
	dir, err := cfg.InboxDir()
	if err != nil {
		return "?"
	}
	return dir
}
