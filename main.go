package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/camrelay/cmd"
	"github.com/smazurov/camrelay/internal/api"
	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/led"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/pixfmt"
	"github.com/smazurov/camrelay/internal/preview"
	"github.com/smazurov/camrelay/internal/relay"
	"github.com/smazurov/camrelay/internal/systemd"
	"github.com/smazurov/camrelay/internal/version"
)

// shutdownTimeout bounds how long OnStop waits for the device to be released.
const shutdownTimeout = 5 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"camrelay.toml"`

	// Camera settings
	CameraBaseURL          string `help:"Camera base URL" short:"u" default:"http://192.168.1.100" toml:"camera.base_url" env:"CAMERA_BASE_URL"`
	CameraStreamPort       int    `help:"Camera MJPEG port (0 keeps the port of the base URL)" default:"81" toml:"camera.stream_port" env:"CAMERA_STREAM_PORT"`
	CameraStreamPath       string `help:"Camera MJPEG path" default:"/stream" toml:"camera.stream_path" env:"CAMERA_STREAM_PATH"`
	CameraChunkSize        int    `help:"Read size in bytes" default:"1024" toml:"camera.chunk_size" env:"CAMERA_CHUNK_SIZE"`
	CameraTimeout          string `help:"Connect and idle read timeout" default:"5s" toml:"camera.timeout" env:"CAMERA_TIMEOUT"`
	CameraReconnectBackoff string `help:"Delay between reconnect attempts" default:"2s" toml:"camera.reconnect_backoff" env:"CAMERA_RECONNECT_BACKOFF"`
	CameraMaxFrameSize     int    `help:"Largest JPEG accepted in bytes" default:"8388608" toml:"camera.max_frame_size" env:"CAMERA_MAX_FRAME_SIZE"`

	// Output settings
	OutputDevice          string `help:"v4l2loopback device" short:"d" default:"/dev/video10" toml:"output.device" env:"OUTPUT_DEVICE"`
	OutputFormat          string `help:"Pixel format (rgb24, bgr24, yuyv, yu12)" short:"f" default:"yuyv" toml:"output.format" env:"OUTPUT_FORMAT"`
	OutputWidth           int    `help:"Output width" short:"W" default:"640" toml:"output.width" env:"OUTPUT_WIDTH"`
	OutputHeight          int    `help:"Output height" short:"H" default:"480" toml:"output.height" env:"OUTPUT_HEIGHT"`
	OutputFPS             int    `help:"Output frame rate cap" default:"30" toml:"output.fps" env:"OUTPUT_FPS"`
	OutputStatsEvery      int    `help:"Frames between rate reports" default:"30" toml:"output.stats_every" env:"OUTPUT_STATS_EVERY"`
	OutputPlaceholderText string `help:"Caption shown before the first frame" default:"Waiting for camera..." toml:"output.placeholder_text" env:"OUTPUT_PLACEHOLDER_TEXT"`

	// API settings
	APIEnabled     bool   `help:"Serve the status API" default:"true" toml:"api.enabled" env:"API_ENABLED"`
	APIAddr        string `help:"API listen address" short:"p" default:":8090" toml:"api.addr" env:"API_ADDR"`
	AuthUsername   string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword   string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`
	APICORSOrigins string `help:"Comma-separated origins allowed by CORS (* for any)" default:"*" toml:"api.cors_origins" env:"API_CORS_ORIGINS"`

	// Preview settings
	PreviewEnabled bool `help:"Serve an MJPEG preview of the relayed frames" default:"true" toml:"preview.enabled" env:"PREVIEW_ENABLED"`
	PreviewFPS     int  `help:"Preview frame rate" default:"5" toml:"preview.fps" env:"PREVIEW_FPS"`
	PreviewQuality int  `help:"Preview JPEG quality" default:"70" toml:"preview.quality" env:"PREVIEW_QUALITY"`

	// Status LED settings
	LEDEnabled bool   `help:"Show the connection state on a board LED" default:"false" toml:"led.enabled" env:"LED_ENABLED"`
	LEDName    string `help:"LED under /sys/class/leds (empty detects the board, none disables)" default:"" toml:"led.name" env:"LED_NAME"`

	// Observability settings
	MetricsEnabled bool `help:"Expose Prometheus metrics at /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingStream    string `help:"Camera stream logging level" default:"info" toml:"logging.stream" env:"LOGGING_STREAM"`
	LoggingPublisher string `help:"Publisher logging level" default:"info" toml:"logging.publisher" env:"LOGGING_PUBLISHER"`
	LoggingRelay     string `help:"Relay logging level" default:"info" toml:"logging.relay" env:"LOGGING_RELAY"`
	LoggingVcam      string `help:"Virtual camera logging level" default:"info" toml:"logging.vcam" env:"LOGGING_VCAM"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP      string `help:"HTTP access logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"stream":    o.LoggingStream,
			"publisher": o.LoggingPublisher,
			"relay":     o.LoggingRelay,
			"vcam":      o.LoggingVcam,
			"api":       o.LoggingAPI,
			"http":      o.LoggingHTTP,
		},
	}
}

func (o *Options) relayConfig() (relay.Config, error) {
	cfg := relay.DefaultConfig()

	format, err := pixfmt.Parse(o.OutputFormat)
	if err != nil {
		return cfg, err
	}
	timeout, err := time.ParseDuration(o.CameraTimeout)
	if err != nil {
		return cfg, errors.Join(errors.New("camera.timeout"), err)
	}
	backoff, err := time.ParseDuration(o.CameraReconnectBackoff)
	if err != nil {
		return cfg, errors.Join(errors.New("camera.reconnect_backoff"), err)
	}

	cfg.CameraBaseURL = o.CameraBaseURL
	cfg.StreamPort = o.CameraStreamPort
	cfg.StreamPath = o.CameraStreamPath
	cfg.ChunkSize = o.CameraChunkSize
	cfg.ConnectTimeout = timeout
	cfg.ReconnectBackoff = backoff
	cfg.MaxFrameSize = o.CameraMaxFrameSize
	cfg.Device = o.OutputDevice
	cfg.Format = format
	cfg.Width = o.OutputWidth
	cfg.Height = o.OutputHeight
	cfg.FPS = o.OutputFPS
	cfg.StatsEvery = o.OutputStatsEvery
	cfg.PlaceholderText = o.OutputPlaceholderText
	return cfg, nil
}

// splitList parses a comma-separated option, dropping empty items.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// relayRunner is satisfied by *relay.Relay.
type relayRunner interface {
	Run(ctx context.Context) error
}

// runRelay runs rl until it returns, with the status LED following the
// connection state, and maps the outcome to a process exit code. The LED is
// switched off before returning on every path.
func runRelay(ctx context.Context, rl relayRunner, indicator led.Controller, bus *events.Bus, logger *slog.Logger) int {
	if indicator != nil {
		ledManager := led.NewManager(indicator, bus, logging.GetLogger("led"))
		ledManager.Start()
		defer ledManager.Stop()
	}

	runErr := rl.Run(ctx)
	switch {
	case runErr == nil || errors.Is(runErr, context.Canceled):
		logger.Info("Relay stopped")
		return 0
	case errors.Is(runErr, relay.ErrDevice):
		logger.Error("Virtual camera failed", "error", runErr)
		return 1
	default:
		logger.Error("Relay failed", "error", runErr)
		return 1
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Flags given on the command line win over env and file.
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		// set by OnStart, released by OnStop
		var mu sync.Mutex
		var server *api.Server
		var watcher *config.Watcher[logging.Config]

		hooks.OnStart(func() {
			// Exit only after the deferred cleanup below has run.
			var exitCode int
			defer func() {
				close(done)
				if exitCode != 0 {
					os.Exit(exitCode)
				}
			}()

			relayCfg, err := opts.relayConfig()
			if err != nil {
				logger.Error("Invalid configuration", "error", err)
				exitCode = 2
				return
			}

			eventBus := events.New()
			relayOpts := relay.Options{
				EventBus: eventBus,
				Notifier: systemd.NewNotifier(logging.GetLogger("systemd")),
			}

			var pv *preview.Preview
			if opts.PreviewEnabled {
				pv = preview.New(opts.PreviewFPS, opts.PreviewQuality, logging.GetLogger("preview"))
				relayOpts.Preview = pv
				go pv.Run(ctx)
			}

			rl, err := relay.New(relayCfg, relayOpts)
			if err != nil {
				logger.Error("Invalid configuration", "error", err)
				exitCode = 2
				return
			}

			mu.Lock()
			if opts.Config != "" {
				watcher = config.NewConfigWatcher(opts.Config, func(path string) (logging.Config, error) {
					return config.LoadLoggingConfig(path), nil
				}, logger)
				watcher.OnReload(logging.ApplyLevels)
				if watchErr := watcher.Start(); watchErr != nil {
					logger.Warn("Config hot reload disabled", "error", watchErr)
					watcher = nil
				}
			}

			if opts.APIEnabled {
				apiOpts := &api.Options{
					AuthUsername: opts.AuthUsername,
					AuthPassword: opts.AuthPassword,
					Relay:        rl,
					EventBus:     eventBus,
					CORSOrigins:  splitList(opts.APICORSOrigins),
				}
				if pv != nil {
					apiOpts.Preview = pv
				}
				if opts.MetricsEnabled {
					apiOpts.PrometheusHandler = promhttp.Handler()
				}
				server = api.NewServer(apiOpts)
				go func(srv *api.Server) {
					if startErr := srv.Start(opts.APIAddr); startErr != nil {
						logger.Error("API server failed", "addr", opts.APIAddr, "error", startErr)
					}
				}(server)
			}
			mu.Unlock()

			go func() {
				if watchErr := relay.WatchDevices(ctx, eventBus, relayCfg.Device, logging.GetLogger("hotplug")); watchErr != nil {
					logger.Debug("Device hotplug monitoring unavailable", "error", watchErr)
				}
			}()

			var indicator led.Controller
			if opts.LEDEnabled {
				indicator = led.New(opts.LEDName, logging.GetLogger("led"))
			}

			logger.Info("Starting camrelay", "version", version.Version, "device", relayCfg.Device, "format", relayCfg.Format.String())
			exitCode = runRelay(ctx, rl, indicator, eventBus, logger)
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()

			select {
			case <-done:
			case <-time.After(shutdownTimeout):
				logger.Warn("Relay did not stop in time", "timeout", shutdownTimeout)
			}

			mu.Lock()
			defer mu.Unlock()
			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping API server", "error", stopErr)
				}
			}
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}
		})
	})

	cli.Root().Use = version.Name
	cli.Root().Short = "Relay an MJPEG IP camera to a v4l2loopback virtual webcam"
	cli.Root().Version = version.Version

	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	cli.Run()
}
