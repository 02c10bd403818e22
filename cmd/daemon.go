package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/theirongolddev/salesdash/internal/cli"
	"github.com/theirongolddev/salesdash/internal/config"
	"github.com/theirongolddev/salesdash/internal/daemon"
	"github.com/theirongolddev/salesdash/internal/logging"
	"github.com/theirongolddev/salesdash/internal/pipeline"

	"github.com/spf13/cobra"
)

// daemonState is written to the state file while a daemon runs.
type daemonState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	Origin    string    `json:"origin"`
	Config    string    `json:"config"`
}

func (s daemonState) url(path string) string {
	return "http://" + s.Addr + path
}

var (
	flagDaemonAddr         string
	flagDaemonInterval     time.Duration
	flagDaemonDetach       bool
	flagDaemonStateFile    string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
	flagDaemonWait         time.Duration
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Poll the series and serve the dashboard over HTTP/SSE",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running daemon's series and forecast state",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	pf := daemonCmd.PersistentFlags()
	pf.StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config)")
	pf.DurationVar(&flagDaemonInterval, "interval", 0, "Polling interval (default from config)")
	pf.StringVar(&flagDaemonStateFile, "state-file", filepath.Join(pipeline.CacheDir(), "salesdashd.json"), "Daemon state file")
	pf.StringVar(&flagDaemonLogFile, "log-file", filepath.Join(pipeline.CacheDir(), "salesdashd.log"), "Log file for detached mode")
	pf.IntVar(&flagDaemonEventsBuffer, "events-buffer", 0, "Max in-memory events retained (default from config)")
	pf.DurationVar(&flagDaemonWait, "wait", 8*time.Second, "How long --detach and stop wait for the daemon")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd, daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("invalid daemon launch mode")
	}
	if flagDaemonDetach {
		return startDaemonDetached(cmd.Context())
	}
	return runDaemonForeground(cmd)
}

// daemonConfig merges daemon flags over the [daemon] config section.
func daemonConfig(cmd *cobra.Command, base daemon.Config) daemon.Config {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		base.Addr = flagDaemonAddr
	}
	if flags.Changed("interval") {
		base.Interval = flagDaemonInterval
	}
	if flags.Changed("events-buffer") {
		base.EventsBuffer = flagDaemonEventsBuffer
	}
	return base
}

func daemonAddr() string {
	if flagDaemonAddr != "" {
		return flagDaemonAddr
	}
	if cfg, err := config.LoadFrom(configPath()); err == nil {
		return cfg.Daemon.Addr
	}
	return config.DefaultConfig().Daemon.Addr
}

// startDaemonDetached re-executes salesdash as a child and waits until its
// API answers, so a bad config is reported here rather than only in the log.
func startDaemonDetached(ctx context.Context) error {
	if st, ok := liveDaemon(flagDaemonStateFile); ok {
		return fmt.Errorf("daemon already running (pid %d, http://%s)", st.PID, st.Addr)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}
	//nolint:gosec // log path is configured by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, childArgs(os.Args[1:])...) //nolint:gosec // re-executes the current binary
	child.Stdout = logf
	child.Stderr = logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}
	exited := make(chan error, 1)
	go func() { exited <- child.Wait() }()

	addr := daemonAddr()
	ready := waitReady(ctx, "http://"+addr+"/healthz", flagDaemonWait, exited)
	if ready != nil {
		return fmt.Errorf("daemon did not come up: %w (see %s)", ready, flagDaemonLogFile)
	}

	fmt.Printf("  Started daemon (pid %d)\n", child.Process.Pid)
	fmt.Printf("  API: http://%s/v1/dashboard\n", addr)
	fmt.Printf("  Log: %s\n", flagDaemonLogFile)
	return nil
}

// childArgs drops --detach and marks the re-executed process as the child.
func childArgs(args []string) []string {
	out := slices.DeleteFunc(slices.Clone(args), func(a string) bool {
		return a == "--detach" || strings.HasPrefix(a, "--detach=")
	})
	return append(out, "--child")
}

// waitReady polls url until it answers 200, the child exits, or wait elapses.
func waitReady(ctx context.Context, url string, wait time.Duration, exited <-chan error) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	client := &http.Client{Timeout: time.Second}
	tick := time.NewTicker(150 * time.Millisecond)
	defer tick.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case err := <-exited:
			if err == nil {
				err = errors.New("exited")
			}
			return fmt.Errorf("child process: %w", err)
		case <-ctx.Done():
			return fmt.Errorf("no answer from %s within %s", url, wait)
		case <-tick.C:
		}
	}
}

func runDaemonForeground(cmd *cobra.Command) error {
	if st, ok := liveDaemon(flagDaemonStateFile); ok {
		return fmt.Errorf("daemon already running (pid %d, http://%s)", st.PID, st.Addr)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") && !flagQuiet {
		cfg.Log.Level = cfg.Daemon.LogLevel
	}
	log := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})

	rt, err := newRuntime(cmd.Context(), cfg, forecastTimeout(cmd, cfg), log)
	if err != nil {
		return err
	}
	defer rt.Close()

	dcfg := daemonConfig(cmd, daemon.Config{
		Interval:       cfg.Daemon.Interval(),
		Addr:           cfg.Daemon.Addr,
		EventsBuffer:   cfg.Daemon.EventsBuffer,
		ForecastOrigin: rt.forecastOrigin,
	})

	state := daemonState{
		PID:       os.Getpid(),
		Addr:      dcfg.Addr,
		StartedAt: time.Now(),
		Origin:    rt.loader.Origin(),
		Config:    configPath(),
	}
	if err := saveDaemonState(flagDaemonStateFile, state); err != nil {
		return err
	}
	defer func() { _ = os.Remove(flagDaemonStateFile) }()

	svc := daemon.New(dcfg, daemon.Deps{
		Session:   rt.session,
		Loader:    rt.loader,
		Predictor: rt.predictor,
		Logger:    log,
	})

	fmt.Printf("  salesdash daemon listening on http://%s\n", dcfg.Addr)
	fmt.Printf("  Polling %s every %s\n", state.Origin, dcfg.Interval)
	if rt.forecastOrigin != "" {
		fmt.Printf("  Forecasts from %s\n", rt.forecastOrigin)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(cmd *cobra.Command, _ []string) error {
	st, ok := liveDaemon(flagDaemonStateFile)
	if !ok {
		if flagJSON {
			return printJSON(map[string]any{"running": false})
		}
		fmt.Println("  Daemon: not running")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
	defer cancel()
	status, err := fetchDaemonStatus(ctx, st)
	if flagJSON {
		out := map[string]any{"running": true, "process": st}
		if err != nil {
			out["error"] = err.Error()
		} else {
			out["status"] = status
		}
		return printJSON(out)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("SALESDASH DAEMON"))
	fmt.Println()
	fmt.Printf("  PID %d, up %s, http://%s\n", st.PID, cli.FormatAge(st.StartedAt, time.Now()), st.Addr)
	if err != nil {
		fmt.Println(cli.RenderWarning("API unreachable: " + err.Error()))
		return nil
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Daemon", "Value"},
		Rows: [][]string{
			{"Origin", status.Summary.Origin},
			{"Days", cli.FormatNumber(int64(status.Summary.Points))},
			{"Total sales", cli.FormatValue(status.Summary.KPIs.Total, 0)},
			{"Trend", cli.RenderTrend(status.Summary.KPIs.Trend)},
			{"Upcoming", cli.FormatNumber(int64(status.Summary.Upcoming))},
			{"Polls", cli.FormatNumber(status.PollCount)},
			{"Last poll", lastPoll(status.LastPollAt)},
		},
	}))
	fmt.Println(cli.RenderStatus("Series", status.Series))
	fmt.Println(cli.RenderStatus("Forecast", status.Forecast))
	if status.LastError != "" {
		fmt.Println(cli.RenderWarning(status.LastError))
	}
	return nil
}

func lastPoll(t time.Time) string {
	if t.IsZero() {
		return "pending"
	}
	return cli.FormatAge(t, time.Now())
}

func fetchDaemonStatus(ctx context.Context, st daemonState) (daemon.Status, error) {
	var status daemon.Status
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, st.url("/v1/status"), nil)
	if err != nil {
		return status, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return status, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("malformed status: %w", err)
	}
	return status, nil
}

func runDaemonStop(cmd *cobra.Command, _ []string) error {
	st, ok := liveDaemon(flagDaemonStateFile)
	if !ok {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flagDaemonWait)
	defer cancel()
	tick := time.NewTicker(150 * time.Millisecond)
	defer tick.Stop()
	for processAlive(st.PID) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon (pid %d) did not exit within %s", st.PID, flagDaemonWait)
		case <-tick.C:
		}
	}

	_ = os.Remove(flagDaemonStateFile)
	fmt.Printf("  Stopped daemon (pid %d, up %s)\n", st.PID, cli.FormatAge(st.StartedAt, time.Now()))
	return nil
}

// liveDaemon reports the daemon recorded in path when its process is alive.
// A state file left behind by a dead process is removed.
func liveDaemon(path string) (daemonState, bool) {
	st, err := loadDaemonState(path)
	if err != nil {
		return st, false
	}
	if !processAlive(st.PID) {
		_ = os.Remove(path)
		return st, false
	}
	return st, true
}

func saveDaemonState(path string, st daemonState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write daemon state: %w", err)
	}
	return os.Rename(tmp, path)
}

func loadDaemonState(path string) (daemonState, error) {
	var st daemonState
	//nolint:gosec // state path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse %s: %w", path, err)
	}
	if st.PID <= 0 {
		return st, fmt.Errorf("invalid pid in %s", path)
	}
	return st, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
