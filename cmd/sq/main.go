package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sidequest/internal/config"
	"sidequest/internal/db"
	"sidequest/internal/device"
	"sidequest/internal/domain"
	"sidequest/internal/engine"
	"sidequest/internal/events"
	"sidequest/internal/feedback"
	"sidequest/internal/migrate"
	"sidequest/internal/refine"
	"sidequest/internal/repo"
	"sidequest/internal/server"
	"sidequest/internal/storage"
	missionsdk "sidequest/sdk/go"
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "sq",
	Short: "Sidequest CLI",
	Long: `Sidequest posts micro-missions to nearby doers.
The create wizard walks six steps (details, location, schedule, price,
requirements, summary), autosaves the draft locally, and publishes to the
configured backend. Without a backend it runs fully offline.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if viper.GetBool("verbose") {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SIDEQUEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(draftCmd())
	rootCmd.AddCommand(missionsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(deviceCmd())
	rootCmd.AddCommand(configCmd())
}

type session struct {
	conn   *sql.DB
	repo   repo.Repo
	kv     storage.KV
	events events.Writer
	cfg    *config.Config
}

func openSession() (*session, error) {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	r := repo.Repo{DB: conn}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &session{
		conn:   conn,
		repo:   r,
		kv:     storage.SQLite{Repo: r},
		events: events.Writer{DB: conn},
		cfg:    cfg,
	}, nil
}

func (s *session) close() {
	s.conn.Close()
}

func withSession(fn func(*session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()
	return fn(s)
}

func (s *session) newStore() *engine.Store {
	store := engine.NewStore(s.kv, logger)
	store.Events = s.events
	return store
}

func (s *session) newRefiner(ctx context.Context) (refine.Refiner, error) {
	if s.cfg.Refine.Provider == "gemini" {
		return refine.NewGemini(ctx, s.cfg.Refine.APIKey, s.cfg.Refine.Model)
	}
	return refine.Heuristic{}, nil
}

// newSequencer wires the wizard against the backend when configured, and
// against nothing at all otherwise: the publish path then takes the offline
// notice branch.
func (s *session) newSequencer(ctx context.Context, store *engine.Store) (*engine.Sequencer, error) {
	identity := device.Provider{KV: s.kv}
	refiner, err := s.newRefiner(ctx)
	if err != nil {
		return nil, err
	}
	seq := engine.NewSequencer(store)
	seq.Identity = identity
	seq.Refiner = refiner
	if s.cfg.Features.Haptics {
		seq.Notify = feedback.Logging{Logger: logger}
	} else {
		seq.Notify = feedback.Noop{}
	}
	seq.Events = s.events
	seq.Logger = logger
	seq.Available = s.cfg.Available
	if s.cfg.Available() {
		deviceID, err := identity.GetOrCreate(ctx)
		if err != nil {
			return nil, err
		}
		token, err := identity.MintToken(deviceID, s.cfg.Backend.JWTSecret, 24*time.Hour)
		if err != nil {
			return nil, err
		}
		seq.Creator = missionsdk.New(s.cfg.Backend.URL, token)
	}
	return seq, nil
}

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a mission through the six-step wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				ctx := cmd.Context()
				store := s.newStore()
				defer store.Close()
				store.Load(ctx)
				seq, err := s.newSequencer(ctx, store)
				if err != nil {
					return err
				}
				return runWizard(ctx, store, seq)
			})
		},
	}
}

func draftCmd() *cobra.Command {
	draft := &cobra.Command{Use: "draft", Short: "Inspect or reset the saved draft"}
	draft.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				store := s.newStore()
				defer store.Close()
				store.Load(cmd.Context())
				d := store.Draft()
				if viper.GetBool("json") {
					return printJSON(d)
				}
				printSummary(d, store.Errors())
				return nil
			})
		},
	})
	draft.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Discard the saved draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				store := s.newStore()
				defer store.Close()
				store.Load(cmd.Context())
				store.Reset(cmd.Context(), nil)
				fmt.Println("Bozza eliminata.")
				return nil
			})
		},
	})
	return draft
}

func missionsCmd() *cobra.Command {
	missions := &cobra.Command{Use: "missions", Short: "Browse published missions"}
	var tag string
	list := &cobra.Command{
		Use:   "list",
		Short: "List missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				items, err := s.repo.ListMissions(cmd.Context(), tag)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Reward", "Location", "Status", "Created"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.Title, m.Reward, m.Location, m.Status, m.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&tag, "tag", "", "tag filter")
	missions.AddCommand(list)
	return missions
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the missions HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				secret := s.cfg.Backend.JWTSecret
				if secret == "" {
					secret = os.Getenv("SIDEQUEST_JWT_SECRET")
				}
				if secret == "" {
					return fmt.Errorf("backend.jwt_secret (or SIDEQUEST_JWT_SECRET) is required for bearer auth")
				}
				handler, err := server.New(server.Config{
					Repo:     s.repo,
					Events:   s.events,
					Logger:   logger,
					BasePath: basePath,
					Auth:     server.AuthConfig{JWTSecret: secret},
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-cmd.Context().Done()
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(ctx)
				}()
				fmt.Printf("Serving Sidequest API on http://%s%s\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Activity log"}
	var n int
	var evtType string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				items, err := s.events.Latest(cmd.Context(), n, evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Device"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + "/" + e.EntityID, e.DeviceID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	log.AddCommand(tail)
	return log
}

func deviceCmd() *cobra.Command {
	dev := &cobra.Command{Use: "device", Short: "Device identity"}
	dev.AddCommand(&cobra.Command{
		Use:   "id",
		Short: "Show (or mint) this workspace's device id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				id, err := device.Provider{KV: s.kv}.GetOrCreate(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Println(id)
				return nil
			})
		},
	})
	var ttl time.Duration
	token := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s *session) error {
				secret := s.cfg.Backend.JWTSecret
				if secret == "" {
					secret = os.Getenv("SIDEQUEST_JWT_SECRET")
				}
				if secret == "" {
					return fmt.Errorf("backend.jwt_secret (or SIDEQUEST_JWT_SECRET) is required")
				}
				p := device.Provider{KV: s.kv}
				id, err := p.GetOrCreate(cmd.Context())
				if err != nil {
					return err
				}
				tok, err := p.MintToken(id, secret, ttl)
				if err != nil {
					return err
				}
				fmt.Println(tok)
				return nil
			})
		},
	}
	token.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	dev.AddCommand(token)
	return dev
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default sidequest.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printSummary(d domain.MissionDraft, errs domain.Validation) {
	fmt.Printf("Titolo:     %s\n", d.Title)
	fmt.Printf("Categoria:  %s (%s)\n", d.Category, d.CategorySource)
	fmt.Printf("Dove:       %s\n", engine.FormatWhere(d))
	fmt.Printf("Quando:     %s\n", engine.FormatWhen(d))
	fmt.Printf("Compenso:   %s · Tip %s · %s\n", engine.FormatPrice(d), engine.FormatTip(d.Tip), d.Urgency)
	fmt.Printf("Qualità:    %s\n", d.Quality)
	if len(d.Tags) > 0 {
		fmt.Printf("Tag:        %s\n", strings.Join(d.Tags, ", "))
	}
	if len(d.Skills) > 0 {
		fmt.Printf("Competenze: %s\n", strings.Join(d.Skills, ", "))
	}
	if d.Notes != "" {
		fmt.Printf("Note:       %s\n", d.Notes)
	}
	if d.Refined != nil && len(d.Refined.Missing) > 0 {
		fmt.Printf("Mancano:    %s\n", strings.Join(d.Refined.Missing, ", "))
	}
	for field, msg := range errs {
		fmt.Printf("! %s: %s\n", field, msg)
	}
}

// runWizard is the terminal rendition of the six-step sheet: one prompt loop
// per step, driven by the sequencer.
func runWizard(ctx context.Context, store *engine.Store, seq *engine.Sequencer) error {
	in := bufio.NewScanner(os.Stdin)
	done := false
	seq.CloseSheet = func() { done = true }

	for !done {
		step := seq.Step()
		info := step.Info()
		fmt.Printf("\n[%d/%d] %s  %s\n", int(step)+1, engine.StepCount, info.Title, info.Subtitle)
		if banner := seq.Banner(); banner != "" {
			fmt.Println("!", banner)
		}
		for field, msg := range store.Errors() {
			fmt.Printf("! %s: %s\n", field, msg)
		}

		switch step {
		case engine.StepDetails:
			promptDetails(in, store, seq)
		case engine.StepLocation:
			promptLocation(in, store)
		case engine.StepSchedule:
			promptSchedule(in, store)
		case engine.StepPrice:
			promptPrice(in, store)
		case engine.StepRequirements:
			promptRequirements(in, store)
		case engine.StepSummary:
			printSummary(store.Draft(), store.Errors())
		}
		if done {
			break
		}

		fmt.Print("> avanti [a], indietro [i]")
		if step == engine.StepSummary {
			fmt.Print(", migliora [m], pubblica [p]")
		}
		fmt.Print(": ")
		if !in.Scan() {
			return in.Err()
		}
		switch strings.TrimSpace(in.Text()) {
		case "i":
			seq.Back()
		case "m":
			if step == engine.StepSummary {
				if err := seq.Refine(ctx); err != nil {
					fmt.Println("!", seq.RefineError())
				}
			}
		case "p":
			if step == engine.StepSummary {
				publish(ctx, seq)
			}
		default:
			if err := seq.Next(ctx); err != nil {
				fmt.Println("!", seq.Banner())
			}
		}
		if toast := seq.Toast(); toast != "" {
			fmt.Println("✓", toast)
		}
		if notice := seq.Notice(); notice != "" {
			fmt.Println("Offline:", notice)
		}
	}
	return nil
}

func publish(ctx context.Context, seq *engine.Sequencer) {
	if err := seq.Publish(ctx); err != nil {
		fmt.Println("!", seq.Banner())
	}
}

func promptDetails(in *bufio.Scanner, store *engine.Store, seq *engine.Sequencer) {
	d := store.Draft()
	fmt.Println("Modelli: grocery, package, assembly. Scorciatoie: !rapida, !modello <key>.")
	if v, ok := ask(in, "Titolo", d.Title); ok {
		switch {
		case v == "!rapida":
			seq.QuickMission()
			return
		case strings.HasPrefix(v, "!modello "):
			if !seq.ApplyTemplate(strings.TrimPrefix(v, "!modello ")) {
				fmt.Println("! modello sconosciuto")
			}
			return
		default:
			store.SetTitle(v)
		}
	}
	if v, ok := ask(in, "Descrizione", d.Description); ok {
		store.SetDescription(v)
	}
	d = store.Draft()
	fmt.Printf("Categoria suggerita: %s\n", d.Category)
	if v, ok := ask(in, "Categoria (vuoto = suggerita)", ""); ok && v != "" {
		store.SetCategory(v, true)
	}
}

func promptLocation(in *bufio.Scanner, store *engine.Store) {
	d := store.Draft()
	remote := d.Location.Mode == domain.LocationRemote
	if v, ok := ask(in, "Remoto? (s/n)", boolAnswer(remote)); ok {
		store.SetRemote(strings.EqualFold(v, "s"))
	}
	if store.Draft().Location.Mode == domain.LocationInPerson {
		if v, ok := ask(in, "Indirizzo", d.Location.Address); ok {
			store.SetLocation(v, d.Location.Coordinates)
		}
	}
}

func promptSchedule(in *bufio.Scanner, store *engine.Store) {
	d := store.Draft()
	fmt.Println("Opzioni: now, tonight, tomorrow, custom.")
	if v, ok := ask(in, "Quando", string(d.Schedule.Option)); ok {
		sched := domain.Schedule{Option: domain.ScheduleOption(v)}
		if sched.Option == domain.ScheduleCustom {
			if start, ok := ask(in, "Inizio (RFC3339)", ""); ok && start != "" {
				sched.Start = &start
			}
			if deadline, ok := ask(in, "Scadenza (RFC3339)", ""); ok && deadline != "" {
				sched.Deadline = &deadline
			}
		}
		store.SetSchedule(sched)
	}
}

func promptPrice(in *bufio.Scanner, store *engine.Store) {
	d := store.Draft()
	hint := d.PriceRangeHint
	fmt.Printf("Fascia consigliata: %d-%d € (media %d €)\n", hint.Min, hint.Max, hint.Avg)
	if v, ok := ask(in, "Compenso €", d.PriceInput); ok {
		store.SetPriceInput(v)
	}
	if v, ok := ask(in, "Tip €", strconv.Itoa(d.Tip)); ok {
		if n, err := strconv.Atoi(v); err == nil {
			store.SetTip(n)
		}
	}
	fmt.Println("Urgenza: Normale, Prioritaria, ASAP.")
	if v, ok := ask(in, "Urgenza", string(d.Urgency)); ok {
		store.SetUrgency(domain.Urgency(v))
	}
}

func promptRequirements(in *bufio.Scanner, store *engine.Store) {
	d := store.Draft()
	if v, ok := ask(in, "Competenze (separate da virgola)", strings.Join(d.Skills, ", ")); ok {
		store.SetSkills(splitList(v))
	}
	if v, ok := ask(in, "Note", d.Notes); ok {
		store.SetNotes(clampRunes(v, maxNotesLen))
	}
	if v, ok := ask(in, "Accesso", d.Access); ok {
		store.SetAccess(clampRunes(v, maxAccessLen))
	}
	private := d.Visibility == domain.VisibilityPrivate
	if v, ok := ask(in, "Privata su invito? (s/n)", boolAnswer(private)); ok {
		if strings.EqualFold(v, "s") {
			store.SetVisibility(domain.VisibilityPrivate)
		} else {
			store.SetVisibility(domain.VisibilityPublic)
		}
	}
}

// Free-text limits enforced at the prompt, not in the draft model.
const (
	maxNotesLen  = 250
	maxAccessLen = 160
)

func clampRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// ask prompts with the current value as default; empty input keeps it.
func ask(in *bufio.Scanner, label, current string) (string, bool) {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	if !in.Scan() {
		return "", false
	}
	v := strings.TrimSpace(in.Text())
	if v == "" {
		return current, current != ""
	}
	return v, true
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func boolAnswer(b bool) string {
	if b {
		return "s"
	}
	return "n"
}
