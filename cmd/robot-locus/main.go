package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/Bucknalla/go-robot-locus/internal/logging"
	"github.com/Bucknalla/go-robot-locus/locus"
)

// Version information - populated at build time via ldflags
var (
	Version   = "dev"     // Will be set to git tag if available, otherwise "dev"
	Commit    = "unknown" // Will be set to git commit hash
	BuildDate = "unknown" // Will be set to build timestamp
)

// options holds the command line settings
type options struct {
	config      locus.Config
	prefix      string
	start       string
	end         string
	gpxFile     string
	demo        bool
	out         string
	serialPort  string
	baudRate    int
	quiet       bool
	logLevel    string
	showVersion bool
}

func newFlagSet(opts *options) *flag.FlagSet {
	opts.config = locus.DefaultConfig()

	fs := flag.NewFlagSet("robot-locus", flag.ContinueOnError)
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information and exit")
	fs.StringVar(&opts.config.Endpoint, "endpoint", "", "Base URL of the positions service (e.g., http://localhost:8080)")
	fs.StringVar(&opts.prefix, "path", "", "Path prefix of the positions endpoint (e.g., foo for /foo/positions/)")
	fs.StringVar(&opts.config.Bearer, "bearer", "", "Bearer token sent with the positions request")
	fs.StringVar(&opts.start, "st", "", "Start of the range (e.g., 2018-01-02T03:04 or RFC 3339)")
	fs.StringVar(&opts.end, "et", "", "End of the range (e.g., 2018-01-02T04:04 or RFC 3339)")
	fs.DurationVar(&opts.config.Interval, "interval", opts.config.Interval, "Delay between reveal steps")
	fs.Float64Var(&opts.config.DefaultBound, "bound", opts.config.DefaultBound, "Axis half-width before data is fetched")
	fs.BoolVar(&opts.config.RawTimes, "raw-times", false, "Send st/et as picker strings instead of ISO 8601 instants")
	fs.StringVar(&opts.gpxFile, "gpx", "", "GPX file to replay instead of querying an endpoint (e.g., track.gpx)")
	fs.BoolVar(&opts.demo, "demo", false, "Replay synthetic positions instead of querying an endpoint")
	fs.StringVar(&opts.out, "out", "", "Write the final plot as SVG to this file")
	fs.StringVar(&opts.serialPort, "serial", "", "Serial port for status output (e.g., /dev/ttyUSB0, COM1)")
	fs.IntVar(&opts.baudRate, "baud", 9600, "Serial port baud rate")
	fs.BoolVar(&opts.quiet, "quiet", false, "Suppress info messages (only output status lines)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n", fs.Name())
		fmt.Fprintf(fs.Output(), "\nRobot Locus Replay\n")
		fmt.Fprintf(fs.Output(), "Fetches robot positions for a time range and replays them point by point.\n\n")
		fmt.Fprintf(fs.Output(), "Options:\n")
		fs.PrintDefaults()
	}
	return fs
}

// parseOptions parses and validates the command line.
func parseOptions(args []string, output io.Writer) (options, error) {
	var opts options
	fs := newFlagSet(&opts)
	fs.SetOutput(output)
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.showVersion {
		return opts, nil
	}
	opts.config.Path = locus.PathFor(opts.prefix)

	if err := opts.config.Validate(); err != nil {
		return opts, err
	}
	if opts.baudRate <= 0 {
		return opts, errors.New("baud rate must be positive")
	}
	if opts.gpxFile != "" && opts.demo {
		return opts, errors.New("-gpx and -demo are mutually exclusive")
	}
	if opts.gpxFile == "" && !opts.demo {
		if opts.config.Endpoint == "" {
			return opts, errors.New("-endpoint is required unless -gpx or -demo is used")
		}
		if !locus.CanShow(opts.start != "", opts.end != "") {
			return opts, fmt.Errorf("%w: -st and -et are required", locus.ErrInvalidRange)
		}
	}
	return opts, nil
}

// query builds the replay query. Ranges are optional for file and demo sources.
func (o options) query(loc *time.Location) (locus.Query, error) {
	if o.start == "" && o.end == "" && (o.gpxFile != "" || o.demo) {
		return locus.Query{}, nil
	}
	start, end, err := locus.ParseRange(o.start, o.end, loc)
	if err != nil {
		return locus.Query{}, err
	}
	return locus.Query{Start: start, End: end}, nil
}

func (o options) fetcher() locus.Fetcher {
	switch {
	case o.gpxFile != "":
		return locus.NewGPXFetcher(o.gpxFile)
	case o.demo:
		return locus.NewDemoFetcher(time.Second)
	default:
		return locus.NewHTTPFetcher(o.config, nil)
	}
}

// consoleView prints one status line per reveal step.
type consoleView struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

func (v *consoleView) SetControls(locus.Controls) {}

func (v *consoleView) ShowStatus(s locus.Status) {
	v.mu.Lock()
	defer v.mu.Unlock()

	line := statusLine(s)
	if line == "" || line == v.last {
		return
	}
	v.last = line
	fmt.Fprintf(v.w, "%s\r\n", line)
}

func statusLine(s locus.Status) string {
	d := s.Display
	if d.PointNum == "" {
		return d.Progress
	}
	fields := []string{d.PointNum, d.Time}
	for _, f := range []string{d.PosX, d.PosY, d.PosTheta} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return strings.Join(fields, "  ")
}

// run replays the query and blocks until the replay finishes or ctx is
// cancelled, which stops the replay and keeps the revealed points.
func run(ctx context.Context, opts options, out io.Writer, log zerolog.Logger) (locus.Status, error) {
	q, err := opts.query(time.Local)
	if err != nil {
		return locus.Status{}, err
	}

	scaler, err := locus.NewScalerFromConfig(opts.config)
	if err != nil {
		return locus.Status{}, err
	}
	plotter, err := locus.NewPlotter(scaler)
	if err != nil {
		return locus.Status{}, err
	}
	ctrl, err := locus.NewController(opts.config, opts.fetcher(), scaler, plotter, &consoleView{w: out},
		locus.WithLogger(log))
	if err != nil {
		return locus.Status{}, err
	}

	if err := ctrl.Show(ctx, q); err != nil {
		return locus.Status{}, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ctrl.Stop()
		case <-done:
		}
	}()

	if err := ctrl.Wait(context.Background()); err != nil {
		return locus.Status{}, err
	}
	status := ctrl.Status()

	if opts.out != "" {
		if err := writeSVG(opts.out, plotter); err != nil {
			return status, err
		}
		log.Info().Str("file", opts.out).Int("points", len(status.Points)).Msg("plot written")
	}
	return status, nil
}

func writeSVG(filename string, plotter *locus.Plotter) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create SVG file: %w", err)
	}
	if _, err := plotter.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write SVG file: %w", err)
	}
	return f.Close()
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Handle version flag
	if opts.showVersion {
		if Version != "dev" {
			fmt.Printf("v%s\n", Version)
		} else {
			fmt.Printf("%s\n", Commit)
		}
		os.Exit(0)
	}

	level := opts.logLevel
	if opts.quiet {
		level = "ERROR"
	}
	log := logging.New(os.Stderr, level)

	// Setup output writer (serial port or stdout)
	var statusWriter io.Writer = os.Stdout
	if opts.serialPort != "" {
		mode := &serial.Mode{
			BaudRate: opts.baudRate,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
		port, err := serial.Open(opts.serialPort, mode)
		if err != nil {
			log.Fatal().Err(err).Str("port", opts.serialPort).Msg("failed to open serial port")
		}
		defer port.Close()
		statusWriter = port
		log.Info().Str("port", opts.serialPort).Int("baud", opts.baudRate).Msg("opened serial port")
	}

	log.Info().
		Str("version", Version).
		Str("endpoint", opts.config.Endpoint).
		Str("path", opts.config.Path).
		Str("gpx", opts.gpxFile).
		Bool("demo", opts.demo).
		Dur("interval", opts.config.Interval).
		Msg("starting robot locus replay, press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status, err := run(ctx, opts, statusWriter, log)
	if err != nil {
		log.Error().Err(err).Msg("replay failed")
		stop()
		os.Exit(1)
	}
	log.Info().
		Stringer("state", status.State).
		Int("index", status.Index).
		Int("total", status.Total).
		Int("points", len(status.Points)).
		Msg("replay finished")
}
