// Command gpio-shutdown powers the machine off when a configured button
// gesture is detected on a GPIO input line.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sweeney/gpio-shutdown/internal/config"
	"github.com/sweeney/gpio-shutdown/internal/gpio"
	"github.com/sweeney/gpio-shutdown/internal/halt"
	"github.com/sweeney/gpio-shutdown/internal/logic"
	"github.com/sweeney/gpio-shutdown/internal/mqtt"
	"github.com/sweeney/gpio-shutdown/internal/status"
	"github.com/sweeney/gpio-shutdown/internal/web"
)

type options struct {
	configPath      string
	chip            string
	line            int
	shutdownCommand string
	dryRun          bool
	poll            time.Duration
	broker          string
	httpAddr        string
	heartbeat       time.Duration
	logLevel        string
	check           bool
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute runs the command and maps the outcome to a process exit code.
func execute(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return guard(cmd.Execute)
}

// guard runs fn, converting errors and panics into exit codes.
func guard(fn func() error) (code int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("unhandled fault", "panic", r)
			code = exitFault
		}
	}()

	err := fn()
	code = exitCode(err)
	if err != nil {
		log.Error("fatal", "err", err, "exit", code, "reason", exitCodeName(code))
	}
	return code
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "gpio-shutdown",
		Short: "Shut the system down on a GPIO button gesture",
		Long: `gpio-shutdown watches one GPIO input line for the gesture configured in
the [GPIO] Button directive of its config file and then halts the system.

Gestures:
  press        shut down when the button goes down
  release      shut down when the button comes up
  hold         shut down once the button has been held for the hold time
  holdrelease  shut down when the button is released after such a hold

Example config:
  [GPIO]
  Button = holdrelease,3`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(opts.logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Config file with the [GPIO] Button directive (older installs use /etc/raspi-gpio3-shutdown.conf)")
	f.StringVar(&opts.chip, "chip", gpio.DefaultChip, "GPIO chip name")
	f.IntVar(&opts.line, "line", gpio.DefaultLine, "GPIO line offset of the button (BCM numbering)")
	f.StringVar(&opts.shutdownCommand, "shutdown-command", halt.DefaultCommand, "Command run once the gesture completes (no shell)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Log the shutdown command instead of running it")
	f.DurationVar(&opts.poll, "poll", time.Second, "Interval for checking the shutdown flag")
	f.StringVar(&opts.broker, "broker", "", "MQTT broker address for lifecycle events (empty disables)")
	f.StringVar(&opts.httpAddr, "http", "", "HTTP status address (empty disables)")
	f.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "Interval for retained MQTT status refreshes (0 to disable)")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.BoolVar(&opts.check, "check", false, "Validate the config file and exit")

	return cmd
}

// setupLogger installs the default logger. journald stamps each line, so
// timestamps are left out.
func setupLogger(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	log.SetDefault(log.NewWithOptions(os.Stderr, log.Options{
		Level:  lvl,
		Prefix: "gpio-shutdown",
	}))
	return nil
}

func run(opts *options) error {
	// Install before anything else so a stop request during setup is not lost.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if opts.poll <= 0 {
		return fmt.Errorf("invalid --poll %v: must be positive", opts.poll)
	}
	if opts.heartbeat < 0 {
		return fmt.Errorf("invalid --heartbeat %v: must not be negative", opts.heartbeat)
	}

	log.Info("reading configuration", "path", opts.configPath)
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	log.Info("button configuration", "gesture", cfg.Gesture, "hold", cfg.HoldTime)

	if opts.check {
		fmt.Println(cfg)
		return nil
	}

	halter, err := halt.NewCommand(opts.shutdownCommand, opts.dryRun)
	if err != nil {
		return err
	}

	src, err := gpio.NewRealSource(opts.chip, opts.line, cfg.HoldTime)
	if err != nil {
		return fmt.Errorf("%w: %w", errGPIOSetup, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("release gpio", "err", err)
			return
		}
		log.Info("released gpio line", "chip", opts.chip, "line", opts.line)
	}()

	tracker := status.NewTracker(time.Now(), status.Config{
		ConfigPath:      opts.configPath,
		Chip:            opts.chip,
		Line:            opts.line,
		Gesture:         cfg.Gesture,
		HoldTime:        cfg.HoldTime,
		ShutdownCommand: halter.String(),
		DryRun:          opts.dryRun,
		PollMs:          opts.poll.Milliseconds(),
		Broker:          opts.broker,
		HTTPAddr:        opts.httpAddr,
		HeartbeatMs:     opts.heartbeat.Milliseconds(),
	})

	publisher := newPublisher(opts.broker)
	defer publisher.Close()

	machine := logic.NewMachine(cfg.Gesture)
	faults := make(chan error, 1)
	if err := watch(src, machine, tracker, publisher, time.Now, faults); err != nil {
		return fmt.Errorf("%w: %w", errGPIOSetup, err)
	}
	log.Info("configured button", "chip", opts.chip, "line", opts.line, "gesture", cfg.Gesture)

	publishStatus(publisher, tracker, "STARTUP", "")

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("http server error", "err", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Info("http status server listening", "addr", opts.httpAddr)
	}

	ticker := time.NewTicker(opts.poll)
	defer ticker.Stop()

	log.Info("waiting for button gesture")
	return runLoop(machine, halter, publisher, tracker, opts.heartbeat, time.Now, faults, ticker.C, sigCh)
}

// watch wires the machine's bindings into the edge source in a single call.
// Every edge is counted and published; only bound edges reach the machine.
// Handlers run on the source's goroutines, so a panic in one is recovered
// there and reported on faults for the wait loop to act on.
func watch(src gpio.Source, m *logic.Machine, tracker *status.Tracker, publisher mqtt.Publisher, now func() time.Time, faults chan<- error) error {
	b, err := m.Bindings()
	if err != nil {
		return err
	}

	observe := func(e logic.Edge) func() {
		bound := b.For(e)
		return func() {
			defer func() {
				if r := recover(); r != nil {
					select {
					case faults <- fmt.Errorf("%w: %s: %v", errHandlerFault, e, r):
					default:
					}
				}
			}()

			at := now()
			tracker.RecordEdge(e, at)
			if bound != nil {
				log.Info("button edge handled", "edge", e, "gesture", m.Gesture())
				bound()
			} else {
				log.Debug("button edge ignored", "edge", e, "gesture", m.Gesture())
			}
			if err := publisher.PublishButton(mqtt.ButtonEvent{Timestamp: at, Edge: e, Gesture: m.Gesture()}); err != nil {
				log.Warn("publish button event", "err", err)
			}
		}
	}

	return src.Watch(gpio.Handlers{
		Pressed:  observe(logic.EdgePressed),
		Released: observe(logic.EdgeReleased),
		Held:     observe(logic.EdgeHeld),
	})
}

// runLoop waits for a termination signal, a handler fault or the shutdown
// flag. All three are handled on this goroutine, so exactly one terminal
// action runs. A heartbeat of zero disables the periodic status refresh.
func runLoop(m *logic.Machine, halter halt.Halter, publisher mqtt.Publisher, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, faults <-chan error, tick <-chan time.Time, sig <-chan os.Signal) error {
	mqttStatus, _ := publisher.(mqtt.ConnectionStatus)
	lastBeat := now()

	for {
		select {
		case s := <-sig:
			name := signalName(s)
			log.Info("received signal, stopping without shutdown", "signal", name)
			publishStatus(publisher, tracker, "SHUTDOWN", name)
			return nil

		case err := <-faults:
			log.Error("button handler fault, stopping without shutdown", "err", err)
			publishStatus(publisher, tracker, "SHUTDOWN", "FAULT")
			return err

		case t := <-tick:
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			if !m.ShutdownRequested() {
				if heartbeat > 0 && t.Sub(lastBeat) >= heartbeat {
					snap := tracker.Snapshot()
					log.Info("heartbeat", "uptime", snap.Uptime().Truncate(time.Second), "pressed", snap.Counts.Pressed, "held", snap.Counts.Held)
					publishStatus(publisher, tracker, "HEARTBEAT", "")
					lastBeat = t
				}
				continue
			}

			log.Info("initiating system shutdown after button gesture", "gesture", m.Gesture())
			tracker.SetShutdownRequested()
			publishStatus(publisher, tracker, "SHUTDOWN", "GESTURE")
			if err := halter.Halt(context.Background()); err != nil {
				log.Error("shutdown command failed", "err", err)
			}
			return nil
		}
	}
}

func publishStatus(publisher mqtt.Publisher, tracker *status.Tracker, event, reason string) {
	snap := tracker.Snapshot()
	err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Warn("publish system event", "event", event, "err", err)
	}
}

// newPublisher returns an MQTT publisher, or a no-op one when broker is empty.
// MQTT is telemetry only; failing to set it up never stops the daemon.
func newPublisher(broker string) mqtt.Publisher {
	if broker == "" {
		return mqtt.NopPublisher{}
	}
	node, err := os.Hostname()
	if err != nil || node == "" {
		node = "unknown"
	}
	p, err := mqtt.NewRealPublisher(broker, node)
	if err != nil {
		log.Warn("mqtt disabled", "broker", broker, "err", err)
		return mqtt.NopPublisher{}
	}
	log.Info("mqtt publisher started", "broker", broker, "topic", mqtt.SystemTopic(node))
	return p
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
