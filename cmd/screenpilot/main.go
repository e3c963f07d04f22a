package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"screenpilot/internal/catalogue"
	"screenpilot/internal/config"
	"screenpilot/internal/logging"
	"screenpilot/internal/notify"
	"screenpilot/internal/ocr"
	"screenpilot/internal/planner"
	"screenpilot/internal/startup"
	"screenpilot/internal/tactile"
	"screenpilot/internal/vision"
	"screenpilot/internal/window"
	"screenpilot/internal/workflow"
	"screenpilot/internal/workspace"
)

var (
	// Global flags
	configPath string
	verbose    bool
	skipVerify bool

	// Loaded state
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "screenpilot",
	Short: "screenpilot - data-driven desktop UI automation",
	Long: `screenpilot drives a desktop application through declarative objectives.

Objectives name an instruction template from the catalogue plus the values
to fill it with. The engine verifies the workspace is maximized and on the
right page before executing, checks every instruction's visible effect, and
retries failed steps with screenshot evidence before giving up.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(cfg.Logging.Dir, logging.Options{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.JSONFormat,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd executes a workflow from an objectives file
var runCmd = &cobra.Command{
	Use:   "run [objectives.json]",
	Short: "Execute the objectives in a workflow file",
	Long: `Runs a full workflow:
  1. Plan: expand every objective against the catalogue (abort if any fails)
  2. Startup: ensure the application is open, focused and maximized
  3. Verify: corner templates plus optional page text
  4. Execute: instructions in order, verified with bounded retries`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

// checkCmd runs the workspace readiness check once
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check workspace readiness (corner templates, page text)",
	RunE:  checkWorkspace,
}

// statusCmd reports application process and window state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report application process and window state",
	RunE:  reportStatus,
}

// planCmd expands objectives without executing anything
var planCmd = &cobra.Command{
	Use:   "plan [objectives.json]",
	Short: "Expand objectives against the catalogue without executing",
	Args:  cobra.ExactArgs(1),
	RunE:  planOnly,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	runCmd.Flags().BoolVar(&skipVerify, "skip-workspace-check", false, "skip the visual readiness check")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(planCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// duration parses a config duration string, falling back when empty or
// malformed.
func duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logger.Warn("bad duration in config, using default",
			zap.String("value", s), zap.Duration("default", fallback))
		return fallback
	}
	return d
}

func newVerifier(capturer vision.Capturer, rec ocr.Recognizer) (*workspace.Verifier, error) {
	templates, err := workspace.LoadTemplates(
		cfg.Workspace.CornerTopLeft,
		cfg.Workspace.CornerTopRight,
		cfg.Workspace.CornerBottomRight,
	)
	if err != nil {
		return nil, err
	}
	return workspace.New(capturer, rec, templates, workspace.Options{
		RegionSize:       cfg.Workspace.RegionSize,
		Confidence:       cfg.Workspace.Confidence,
		ExpectedPageText: cfg.Workspace.ExpectedPageText,
		EvidenceDir:      cfg.Evidence.Dir,
	}), nil
}

func newSequencer(verifier *workspace.Verifier) *startup.Sequencer {
	win := window.NewRobotController(window.Options{
		ProcessName: cfg.App.ProcessName,
		Executable:  cfg.App.Executable,
		WindowTitle: cfg.App.WindowTitle,
	})
	return startup.New(win, verifier, startup.Options{
		LaunchWait:    duration(cfg.App.LaunchWait, 5*time.Second),
		LaunchRetries: cfg.App.LaunchRetries,
		FixRetries:    cfg.App.FixRetries,
	})
}

func newSink() notify.Sink {
	if !cfg.Notify.Enabled {
		return notify.NewLogSink()
	}
	return notify.MultiSink{
		notify.NewLogSink(),
		notify.NewEmailSink(notify.EmailConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			Username: cfg.Notify.Username,
			Password: cfg.Notify.Password,
			From:     cfg.Notify.From,
			To:       cfg.Notify.To,
		}),
	}
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	objectives, err := planner.LoadObjectivesFile(args[0])
	if err != nil {
		return err
	}
	logger.Info("objectives loaded",
		zap.String("file", args[0]), zap.Int("count", len(objectives)))

	source, err := catalogue.NewDirSource(cfg.Catalogue.Dir, cfg.Catalogue.Watch)
	if err != nil {
		return err
	}
	defer source.Close()

	capturer := vision.NewRobotCapturer()
	recognizer, err := ocr.NewTesseractRecognizer(cfg.OCR.Languages, cfg.OCR.ConfidenceFloor)
	if err != nil {
		return fmt.Errorf("failed to start OCR engine: %w", err)
	}
	defer recognizer.Close()

	verifier, err := newVerifier(capturer, recognizer)
	if err != nil {
		return err
	}

	if err := newSequencer(verifier).Run(ctx); err != nil {
		return fmt.Errorf("startup sequence failed: %w", err)
	}
	logger.Info("startup sequence complete")

	var columnTemplate = loadColumnTemplate()
	deps := workflow.Deps{
		Driver:     tactile.NewRobotDriver(tactile.DefaultDriverConfig()),
		Capturer:   capturer,
		Recognizer: recognizer,
		Table: workflow.TableOptions{
			Crop:                cfg.Table.Crop.Rect(),
			ColumnTemplate:      columnTemplate,
			ClusteringTolerance: cfg.Table.ClusteringTolerance,
			MinRowHeight:        cfg.Table.MinRowHeight,
		},
		PollInterval:  duration(cfg.Workflow.PollInterval, 500*time.Millisecond),
		VerifyTimeout: duration(cfg.Workflow.VerifyTimeout, 5*time.Second),
	}

	sink := newSink()
	evidence := workflow.NewScreenshotRecorder(capturer, filepath.Join(cfg.Evidence.Dir, time.Now().Format("20060102_150405")))
	retry := workflow.NewRetryExecutor(
		workflow.NewDispatcher(workflow.DefaultHandlers(deps)),
		sink,
		evidence,
		cfg.Workflow.MaxRetries,
		duration(cfg.Workflow.RetryDelay, time.Second),
	)

	var checker workflow.WorkspaceChecker
	if !skipVerify {
		checker = verifier
	}
	controller := workflow.NewController(planner.New(source), checker, retry, sink)

	result, err := controller.Run(ctx, objectives)
	if err != nil {
		return err
	}

	printJSON(result)
	if result.Failed > 0 {
		return fmt.Errorf("workflow stopped: %d objective(s) failed", result.Failed)
	}
	return nil
}

// loadColumnTemplate is best-effort: without it, row search still works
// on the raw grid.
func loadColumnTemplate() image.Image {
	if cfg.Table.ColumnTemplate == "" {
		return nil
	}
	img, err := vision.LoadImage(cfg.Table.ColumnTemplate)
	if err != nil {
		logger.Warn("column template unavailable, row search will skip column separation",
			zap.Error(err))
		return nil
	}
	return img
}

func checkWorkspace(cmd *cobra.Command, args []string) error {
	capturer := vision.NewRobotCapturer()

	var recognizer ocr.Recognizer
	if cfg.Workspace.ExpectedPageText != "" {
		rec, err := ocr.NewTesseractRecognizer(cfg.OCR.Languages, cfg.OCR.ConfidenceFloor)
		if err != nil {
			return fmt.Errorf("failed to start OCR engine: %w", err)
		}
		defer rec.Close()
		recognizer = rec
	}

	verifier, err := newVerifier(capturer, recognizer)
	if err != nil {
		return err
	}
	report, err := verifier.Check()
	if err != nil {
		return err
	}
	printJSON(report)
	if !report.Ready {
		return fmt.Errorf("workspace not ready")
	}
	return nil
}

func reportStatus(cmd *cobra.Command, args []string) error {
	win := window.NewRobotController(window.Options{
		ProcessName: cfg.App.ProcessName,
		Executable:  cfg.App.Executable,
		WindowTitle: cfg.App.WindowTitle,
	})
	printJSON(window.Snapshot(win))
	return nil
}

func planOnly(cmd *cobra.Command, args []string) error {
	objectives, err := planner.LoadObjectivesFile(args[0])
	if err != nil {
		return err
	}
	source, err := catalogue.NewDirSource(cfg.Catalogue.Dir, false)
	if err != nil {
		return err
	}
	defer source.Close()

	prepared, err := planner.New(source).PrepareAll(objectives)
	if err != nil {
		return err
	}
	printJSON(prepared)
	return nil
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(out))
}
