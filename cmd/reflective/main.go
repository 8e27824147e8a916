package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nyshlabs/reflective/internal/analytics"
	"github.com/nyshlabs/reflective/internal/calendar"
	"github.com/nyshlabs/reflective/internal/config"
	"github.com/nyshlabs/reflective/internal/gateway"
	"github.com/nyshlabs/reflective/internal/insight"
	"github.com/nyshlabs/reflective/internal/journal"
	"github.com/nyshlabs/reflective/internal/llm"
	"github.com/nyshlabs/reflective/internal/reminder"
)

// generatorFactory is swapped in tests.
var generatorFactory = func(cfg *config.Config) (llm.Generator, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Run 'reflective onboard' or set REFLECTIVE_API_KEY / OPENAI_API_KEY")
	}
	return gateway.DefaultGeneratorFactory(cfg)
}

var rootCmd = &cobra.Command{
	Use:   "reflective",
	Short: "reflective - journaling companion",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway (web UI, channels, reminders)",
	RunE:  runServe,
}

var addCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Add a journal entry",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runAdd(cfg, cmd.OutOrStdout(), strings.Join(args, " "))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runList(cfg, cmd.OutOrStdout())
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show streaks and mood trends",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runStats(cfg, cmd.OutOrStdout())
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search journal entries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runSearch(cfg, cmd.OutOrStdout(), strings.Join(args, " "))
	},
}

var insightCmd = &cobra.Command{
	Use:   "insight",
	Short: "Ask the assistant for patterns in your journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runInsight(cfg, cmd.OutOrStdout())
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Manage journaling reminders",
}

var remindAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a reminder",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runRemindAdd(cfg, cmd.OutOrStdout())
	},
}

var remindListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runRemindList(cfg, cmd.OutOrStdout())
	},
}

var remindRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runRemindRemove(cfg, cmd.OutOrStdout(), args[0])
	},
}

var remindExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a reminder as an .ics calendar event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return runRemindExport(cfg, cmd.OutOrStdout(), args[0])
	},
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnboard(cmd.OutOrStdout())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reflective status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.OutOrStdout())
	},
}

var (
	moodFlag    string
	tagsFlag    []string
	timeFlag    string
	dateFlag    string
	listMood    string
	limitFlag   int
	remindName  string
	remindStart string
	remindRecur string
	remindMsg   string
	remindChan  string
	remindTo    string
	remindNotes string
	exportOut   string
)

func init() {
	addCmd.Flags().StringVarP(&moodFlag, "mood", "m", journal.DefaultMood, "Mood label")
	addCmd.Flags().StringSliceVarP(&tagsFlag, "tags", "t", nil, "Comma-separated tags")
	addCmd.Flags().StringVar(&timeFlag, "time", "", "Entry timestamp (YYYY-MM-DD HH:MM:SS)")

	listCmd.Flags().StringVarP(&dateFlag, "date", "d", "", "Filter by date (YYYY-MM-DD)")
	listCmd.Flags().StringVarP(&listMood, "mood", "m", "", "Filter by mood")

	searchCmd.Flags().IntVarP(&limitFlag, "limit", "n", 0, "Maximum matches (default from config)")

	remindAddCmd.Flags().StringVar(&remindName, "name", "", "Reminder name (required)")
	remindAddCmd.Flags().StringVar(&remindStart, "start", "", "First occurrence (YYYY-MM-DD HH:MM:SS, required)")
	remindAddCmd.Flags().StringVar(&remindRecur, "recur", "none", "Recurrence: none, daily, weekly, monthly")
	remindAddCmd.Flags().StringVar(&remindMsg, "message", "", "Message to deliver")
	remindAddCmd.Flags().StringVar(&remindChan, "channel", "", "Delivery channel (telegram, webui)")
	remindAddCmd.Flags().StringVar(&remindTo, "to", "", "Delivery chat id")
	remindAddCmd.Flags().StringVar(&remindNotes, "notes", "", "Notes for the calendar event")

	remindExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to file instead of stdout")

	remindCmd.AddCommand(remindAddCmd, remindListCmd, remindRemoveCmd, remindExportCmd)
	rootCmd.AddCommand(serveCmd, addCmd, listCmd, statsCmd, searchCmd, insightCmd, remindCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (*journal.Store, error) {
	return journal.NewStore(cfg.Store.DBPath)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'reflective onboard' or set REFLECTIVE_API_KEY / OPENAI_API_KEY")
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runAdd(cfg *config.Config, out io.Writer, text string) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ts := time.Now()
	if timeFlag != "" {
		parsed, err := time.ParseInLocation(journal.TimeLayout, timeFlag, time.Local)
		if err != nil {
			return fmt.Errorf("parse --time: %w", err)
		}
		ts = parsed
	}

	id, err := store.Append(context.Background(), text, moodFlag, tagsFlag, ts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved entry #%d\n", id)
	return nil
}

func runList(cfg *config.Config, out io.Writer) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	f := journal.Filter{Mood: listMood}
	if dateFlag != "" {
		parsed, err := time.ParseInLocation(journal.DateLayout, dateFlag, time.Local)
		if err != nil {
			return fmt.Errorf("parse --date: %w", err)
		}
		f.Date = parsed
	}

	entries, err := store.List(context.Background(), f)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No entries.")
		return nil
	}
	for _, e := range entries {
		printEntry(out, e)
	}
	return nil
}

func runStats(cfg *config.Config, out io.Writer) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	entries, err := store.All(context.Background(), journal.Descending)
	if err != nil {
		return err
	}

	streaks := analytics.ComputeStreaks(entries)
	fmt.Fprintf(out, "Entries: %d\n", len(entries))
	fmt.Fprintf(out, "Current streak: %d days\n", streaks.Current)
	fmt.Fprintf(out, "Longest streak: %d days\n", streaks.Longest)

	moods := analytics.MoodBreakdown(entries)
	if len(moods) > 0 {
		fmt.Fprintln(out, "\nMoods:")
		names := make([]string, 0, len(moods))
		for name := range moods {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if moods[names[i]] != moods[names[j]] {
				return moods[names[i]] > moods[names[j]]
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			fmt.Fprintf(out, "  %s: %d\n", name, moods[name])
		}
	}

	weekdays := analytics.WeekdayBreakdown(entries)
	fmt.Fprintln(out, "\nEntries by weekday:")
	for _, day := range analytics.Weekdays {
		fmt.Fprintf(out, "  %s: %d\n", day, weekdays[day])
	}
	return nil
}

func runSearch(cfg *config.Config, out io.Writer, query string) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	limit := limitFlag
	if limit <= 0 {
		limit = cfg.Search.Limit
	}

	entries, err := store.Search(context.Background(), query, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No entries match.")
		return nil
	}
	for _, e := range entries {
		printEntry(out, e)
	}
	return nil
}

func runInsight(cfg *config.Config, out io.Writer) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	entries, err := store.All(context.Background(), journal.Descending)
	if err != nil {
		return err
	}

	gen, err := generatorFactory(cfg)
	if err != nil {
		return err
	}

	requester := insight.NewRequester(gen, cfg.Insight.CharLimit)
	summary, err := requester.Analyze(context.Background(), entries)
	if err != nil {
		var empty *insight.EmptyCorpusError
		if errors.As(err, &empty) {
			fmt.Fprintln(out, "Your journal is empty. Write a few entries first.")
			return nil
		}
		return err
	}
	fmt.Fprintln(out, summary)
	return nil
}

func runRemindAdd(cfg *config.Config, out io.Writer) error {
	if remindName == "" {
		return fmt.Errorf("--name is required")
	}
	if remindStart == "" {
		return fmt.Errorf("--start is required")
	}
	start, err := time.ParseInLocation(journal.TimeLayout, remindStart, time.Local)
	if err != nil {
		return fmt.Errorf("parse --start: %w", err)
	}

	svc := reminder.NewService(cfg.Store.RemindersPath)
	if err := svc.Load(); err != nil {
		return err
	}
	r, err := svc.Add(reminder.NewReminder(remindName, start, calendar.ParseRecurrence(remindRecur), reminder.Delivery{
		Channel: remindChan,
		To:      remindTo,
		Message: remindMsg,
	}, remindNotes))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Added reminder %s (%s)\n", r.Name, r.ID)
	return nil
}

func runRemindList(cfg *config.Config, out io.Writer) error {
	svc := reminder.NewService(cfg.Store.RemindersPath)
	if err := svc.Load(); err != nil {
		return err
	}
	reminders := svc.List()
	if len(reminders) == 0 {
		fmt.Fprintln(out, "No reminders.")
		return nil
	}
	for _, r := range reminders {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(out, "%s  %s  %s  %s (%s)\n", r.ID, r.Name, r.StartAt.Format(journal.TimeLayout), r.Recurrence, state)
	}
	return nil
}

func runRemindRemove(cfg *config.Config, out io.Writer, id string) error {
	svc := reminder.NewService(cfg.Store.RemindersPath)
	if err := svc.Load(); err != nil {
		return err
	}
	if !svc.Remove(id) {
		return fmt.Errorf("reminder %s not found", id)
	}
	fmt.Fprintf(out, "Removed reminder %s\n", id)
	return nil
}

func runRemindExport(cfg *config.Config, out io.Writer, id string) error {
	svc := reminder.NewService(cfg.Store.RemindersPath)
	if err := svc.Load(); err != nil {
		return err
	}
	r, ok := svc.Get(id)
	if !ok {
		return fmt.Errorf("reminder %s not found", id)
	}

	w := out
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		defer f.Close()
		w = f
	}
	if err := calendar.WriteEvent(w, r.Event()); err != nil {
		return err
	}
	if exportOut != "" {
		fmt.Fprintf(out, "Wrote %s\n", exportOut)
	}
	return nil
}

func runOnboard(out io.Writer) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	cfg, _ := config.LoadConfig()
	if err := os.MkdirAll(cfg.Store.TranscriptDir, 0755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}

	fmt.Fprintf(out, "Data directory ready: %s\n", cfgDir)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to set your API key\n", cfgPath)
	fmt.Fprintln(out, "  2. Or set REFLECTIVE_API_KEY environment variable")
	fmt.Fprintln(out, "  3. Run 'reflective add \"First entry\"' to start journaling")
	fmt.Fprintln(out, "  4. Run 'reflective serve' for the web UI")
	return nil
}

func runStatus(out io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Journal: %s\n", cfg.Store.DBPath)
	fmt.Fprintf(out, "Model: %s\n", cfg.Provider.Model)
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Fprintf(out, "API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Fprintln(out, "API Key: set")
	} else {
		fmt.Fprintln(out, "API Key: not set")
	}
	fmt.Fprintf(out, "Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Fprintf(out, "WebUI: enabled=%v\n", cfg.Channels.WebUI.Enabled)
	fmt.Fprintf(out, "Voice: enabled=%v\n", cfg.Voice.Enabled)

	if _, err := os.Stat(cfg.Store.DBPath); err != nil {
		fmt.Fprintln(out, "Entries: none yet")
		return nil
	}

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(out, "Entries: error (%v)\n", err)
		return nil
	}
	defer store.Close()

	count, err := store.Count(context.Background())
	if err != nil {
		fmt.Fprintf(out, "Entries: error (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Entries: %d\n", count)
	return nil
}

func printEntry(out io.Writer, e journal.Entry) {
	fmt.Fprintf(out, "#%d  %s  %s\n", e.ID, e.Timestamp.Format(journal.TimeLayout), e.Mood)
	if len(e.Tags) > 0 {
		fmt.Fprintf(out, "    tags: %s\n", strings.Join(e.Tags, ", "))
	}
	fmt.Fprintf(out, "    %s\n", e.Text)
}
