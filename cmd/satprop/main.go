// Команда satprop рассчитывает эфемериды ИСЗ по элементам NORAD и
// обслуживает HTTP API каталога.
//
//	satprop ephem  -tle iss.txt -from 0 -to 1440 -step 360 -model sgp4
//	satprop passes -tle iss.txt -lat 55.75 -lon 37.62 -hours 48
//	satprop track  -tle iss.txt -id 25544
//	satprop serve  -config satprop.toml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/art-injener/satprop/internal/handlers"
	"github.com/art-injener/satprop/internal/metrics"
	"github.com/art-injener/satprop/internal/norad"
	"github.com/art-injener/satprop/internal/tracker"
)

const usage = `usage: satprop <command> [flags]

commands:
  ephem   print state vectors for a satellite
  passes  list passes over an observer
  track   print ground track as JSON
  serve   run HTTP API
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "ephem":
		err = runEphem(args, os.Stdout)
	case "passes":
		err = runPasses(args, os.Stdout)
	case "track":
		err = runTrack(args, os.Stdout)
	case "serve":
		err = runServe(args)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "satprop %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// satelliteFlags — общие флаги выбора спутника и модели.
type satelliteFlags struct {
	file     string
	id       int
	model    string
	family   string
	gravity  string
	maxSteps int
}

func (f *satelliteFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.file, "tle", "", "TLE file (two or three line format)")
	fs.IntVar(&f.id, "id", 0, "NORAD catalog number; first satellite in file if 0")
	fs.StringVar(&f.model, "model", "", "model: sgp, sgp4, sgp8, sdp4, sdp8 (default: chosen from family by period)")
	fs.StringVar(&f.family, "family", "sgp4", "model family when -model is empty: sgp4 or sgp8")
	fs.StringVar(&f.gravity, "gravity", norad.GravityWGS72.Name, "gravity constants: report3, wgs72, wgs84")
	fs.IntVar(&f.maxSteps, "max-resonance-steps", 0, "resonance integrator step limit per call (0 = default)")
}

func (f *satelliteFlags) propagator() (*tracker.Propagator, error) {
	if f.file == "" {
		return nil, errors.New("-tle is required")
	}

	tles, err := tracker.LoadTLEFile(f.file)
	if err != nil {
		return nil, errors.Wrap(err, "load elements")
	}

	tle, err := pick(tles, f.id)
	if err != nil {
		return nil, err
	}

	g, ok := norad.GravityByName(f.gravity)
	if !ok {
		return nil, errors.Errorf("unknown gravity model %q", f.gravity)
	}

	opts := []tracker.PropagatorOption{tracker.WithGravity(g), tracker.WithResonanceStepLimit(f.maxSteps)}
	if f.model != "" {
		m, err := norad.ParseModel(f.model)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tracker.WithModel(m))
	} else {
		fam, err := norad.ParseFamily(f.family)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tracker.WithFamily(fam))
	}

	prop, err := tracker.NewPropagator(tle, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "satellite %d", tle.NoradID)
	}

	return prop, nil
}

func pick(tles []*tracker.TLE, id int) (*tracker.TLE, error) {
	if len(tles) == 0 {
		return nil, errors.New("no elements in file")
	}
	if id == 0 {
		return tles[0], nil
	}

	for _, tle := range tles {
		if tle.NoradID == id {
			return tle, nil
		}
	}

	return nil, errors.Errorf("satellite %d not found in file", id)
}

// runEphem печатает векторы состояния с шагом по минутам от эпохи.
func runEphem(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ephem", flag.ContinueOnError)

	var sat satelliteFlags
	sat.register(fs)
	from := fs.Float64("from", 0, "start, minutes since epoch")
	to := fs.Float64("to", 1440, "stop, minutes since epoch")
	step := fs.Float64("step", 360, "step, minutes")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *step <= 0 {
		return errors.Errorf("step must be positive, got %g", *step)
	}

	prop, err := sat.propagator()
	if err != nil {
		return err
	}

	tle := prop.TLE()
	fmt.Fprintf(out, "%s (%d) model=%s gravity=%s\n", tle.Name, tle.NoradID, prop.Model(), prop.Gravity().Name)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "TSINCE\tX\tY\tZ\tXDOT\tYDOT\tZDOT\t")

	epoch := tle.Epoch
	for ts := *from; ts <= *to+1e-9; ts += *step {
		t := epoch.Add(time.Duration(ts * float64(time.Minute)))

		st, err := prop.State(t)
		if err != nil {
			w.Flush()
			return errors.Wrapf(err, "tsince %.1f", ts)
		}

		fmt.Fprintf(w, "%.1f\t%.8f\t%.8f\t%.8f\t%.8f\t%.8f\t%.8f\t\n", st.Tsince,
			st.Position[0], st.Position[1], st.Position[2],
			st.Velocity[0], st.Velocity[1], st.Velocity[2])
	}

	return w.Flush()
}

func runPasses(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("passes", flag.ContinueOnError)

	var sat satelliteFlags
	sat.register(fs)
	lat := fs.Float64("lat", 0, "observer latitude, degrees")
	lon := fs.Float64("lon", 0, "observer longitude, degrees")
	alt := fs.Float64("alt", 0, "observer altitude, km")
	start := fs.String("start", "", "search start, RFC 3339 (default: now)")
	hours := fs.Float64("hours", 24, "search window, hours")
	minEl := fs.Float64("min-el", 0, "minimum elevation, degrees")

	if err := fs.Parse(args); err != nil {
		return err
	}

	t0, err := parseTime(*start)
	if err != nil {
		return err
	}

	prop, err := sat.propagator()
	if err != nil {
		return err
	}

	obs := tracker.NewObserver(*lat, *lon, *alt)
	stop := t0.Add(time.Duration(*hours * float64(time.Hour)))

	passes, err := tracker.FindPasses(context.Background(), prop, obs, t0, stop,
		tracker.PassOptions{MinElevation: *minEl})
	if err != nil && len(passes) == 0 {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AOS\tAZ\tMAX\tEL\tLOS\tAZ\tVISIBLE")
	for _, p := range passes {
		fmt.Fprintf(w, "%s\t%.0f\t%s\t%.1f\t%s\t%.0f\t%t\n",
			p.AOS.Format(time.TimeOnly), p.AOSAzimuth,
			p.MaxTime.Format(time.TimeOnly), p.MaxElevation,
			p.LOS.Format(time.TimeOnly), p.LOSAzimuth, p.Visible)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}

	return err
}

func runTrack(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("track", flag.ContinueOnError)

	var sat satelliteFlags
	sat.register(fs)
	at := fs.String("t", "", "track center, RFC 3339 (default: now)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	t, err := parseTime(*at)
	if err != nil {
		return err
	}

	prop, err := sat.propagator()
	if err != nil {
		return err
	}

	track, err := tracker.GenerateDefaultGroundTrack(prop, t)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(track)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	path := fs.String("config", "", "config file (toml, yaml or json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*path)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	catalog, err := tracker.NewCatalog(&cfg.Catalog, tracker.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "create catalog")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := catalog.Start(ctx); err != nil {
		return errors.Wrap(err, "start catalog")
	}
	defer catalog.Stop()

	metrics.SetCatalogSize(catalog.Count(), catalog.StaleCount())

	fleetOpts := []tracker.FleetOption{
		tracker.WithFleetLogger(logger),
		tracker.WithObserver(metrics.ObservePropagation),
	}
	if cfg.Workers > 0 {
		fleetOpts = append(fleetOpts, tracker.WithWorkers(cfg.Workers))
	}
	fleet := tracker.NewFleet(catalog, fleetOpts...)

	api := handlers.NewAPIHandler(catalog, fleet,
		handlers.WithLogger(logger),
		handlers.WithObserver(cfg.Observer.observer()),
		handlers.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst),
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"satellites", catalog.Count(),
			"family", cfg.Catalog.Family,
			"gravity", cfg.Catalog.Gravity,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}

	logger.Info("server stopped")

	return nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse time %q", s)
	}

	return t.UTC(), nil
}
