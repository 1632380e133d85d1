package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/dpup/prefab"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dpup/campusnav/server/internal/clients/buildings"
	"github.com/dpup/campusnav/server/internal/clients/gps"
	"github.com/dpup/campusnav/server/internal/services"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "navigate":
		handleNavigate()
	case "serve":
		handleServe()
	case "route":
		handleRoute()
	case "buildings":
		handleBuildings()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// walkFlags are shared by navigate and serve
type walkFlags struct {
	config   *string
	to       *string
	simulate *bool
	speed    *float64
	gpx      *string
	track    *string
	interval *time.Duration
	kml      *string
	verbose  *bool
}

func registerWalkFlags(fs *flag.FlagSet) *walkFlags {
	return &walkFlags{
		config:   fs.String("config", "", "Path to campusnav YAML configuration"),
		to:       fs.String("to", "", "Destination building name"),
		simulate: fs.Bool("simulate", false, "Walk the route with the simulated walker"),
		speed:    fs.Float64("speed", 0, "Simulated walking distance per tick"),
		gpx:      fs.String("gpx", "", "Replay a recorded GPX walk"),
		track:    fs.String("track", "", "Replay an encoded polyline walk"),
		interval: fs.Duration("interval", time.Second, "Delay between replayed fixes"),
		kml:      fs.String("kml", "", "Write the calculated route to this KML file"),
		verbose:  fs.Bool("v", false, "Enable debug logging"),
	}
}

func (f *walkFlags) overrides() map[string]any {
	overrides := map[string]any{}
	switch {
	case *f.gpx != "" || *f.track != "":
		overrides["navigation.use_real_gps"] = true
	case *f.simulate:
		overrides["navigation.use_real_gps"] = false
	}
	if *f.speed > 0 {
		overrides["navigation.simulation_speed"] = *f.speed
	}
	return overrides
}

func (f *walkFlags) fixes() ([]gps.Fix, error) {
	switch {
	case *f.gpx != "":
		return gps.LoadGPX(*f.gpx)
	case *f.track != "":
		return gps.DecodeTrack(*f.track)
	default:
		return nil, nil
	}
}

func handleNavigate() {
	fs := flag.NewFlagSet("navigate", flag.ExitOnError)
	flags := registerWalkFlags(fs)
	fs.Parse(os.Args[2:])

	if *flags.to == "" {
		fmt.Println("Example usage:")
		fmt.Println("  campusnav navigate --config campusnav.yaml --to \"Central Library\" --simulate")
		fmt.Println("  campusnav navigate --config campusnav.yaml --to \"Central Library\" --gpx walk.gpx --kml route.kml")
		os.Exit(1)
	}

	a, err := newApp(*flags.config, flags.overrides(), *flags.verbose)
	if err != nil {
		log.Fatalf("Error loading campus: %v", err)
	}
	defer a.logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	listener := newConsoleListener()
	svc := a.navigationService(listener, *flags.kml)
	if err := walk(ctx, a, svc, listener, flags); err != nil {
		log.Fatalf("Navigation failed: %v", err)
	}
}

func handleServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	flags := registerWalkFlags(fs)
	fs.Parse(os.Args[2:])

	a, err := newApp(*flags.config, flags.overrides(), *flags.verbose)
	if err != nil {
		log.Fatalf("Error loading campus: %v", err)
	}
	defer a.logger.Sync()

	listener := newConsoleListener()
	svc := a.navigationService(listener, *flags.kml)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if a.config.Buildings.CacheTTL > 0 {
		a.lookup.StartPeriodicCleanup(ctx, a.config.Buildings.CacheTTL)
	}

	if *flags.to != "" {
		go func() {
			if err := walk(ctx, a, svc, listener, flags); err != nil {
				a.logger.Error("Navigation failed", zap.Error(err))
			}
		}()
	}

	server := prefab.New(
		prefab.WithHTTPHandlerFunc("/status", statusHandler(svc, a.lookup, a.logger)),
		prefab.WithHTTPHandlerFunc("/metrics", metricsHandler(a)),
	)

	a.logger.Info("Campus navigation server starting")
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func handleRoute() {
	fs := flag.NewFlagSet("route", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to campusnav YAML configuration")
	from := fs.String("from", "", "Starting building name")
	to := fs.String("to", "", "Destination building name")
	fs.Parse(os.Args[2:])

	if *from == "" || *to == "" {
		fmt.Println("Example usage:")
		fmt.Println("  campusnav route --config campusnav.yaml --from \"Main Gate\" --to \"Central Library\"")
		os.Exit(1)
	}

	a, err := newApp(*configPath, nil, false)
	if err != nil {
		log.Fatalf("Error loading campus: %v", err)
	}

	svc := a.navigationService(services.NopListener{}, "")
	path, err := svc.FindPathBetweenBuildings(*from, *to)
	if err != nil {
		log.Fatalf("Route failed: %v", err)
	}

	waypoints := a.engine.WorldPath(path)
	fmt.Printf("%s to %s: %d points, cost %.2f\n", *from, *to, len(path), a.engine.PathCost(path))
	for i, w := range waypoints {
		fmt.Printf("  %2d: %-8s (%.2f, %.2f)\n", i, path[i], w.X, w.Z)
	}
}

func handleBuildings() {
	fs := flag.NewFlagSet("buildings", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to campusnav YAML configuration")
	fs.Parse(os.Args[2:])

	a, err := newApp(*configPath, nil, false)
	if err != nil {
		log.Fatalf("Error loading campus: %v", err)
	}

	for _, name := range a.catalog.Names() {
		position, _ := a.catalog.FindBuildingByName(name)
		nearest, _ := a.engine.FindNearestPoint(position)
		fmt.Printf("%-30s x=%8.2f z=%8.2f  nearest point %s\n", name, position.X, position.Z, nearest)
	}
}

// walk calculates the route and follows it until arrival, the end of a
// replayed track, or cancellation
func walk(ctx context.Context, a *app, svc *services.NavigationService, listener *consoleListener, flags *walkFlags) error {
	fixes, err := flags.fixes()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var replay *gps.Replay
	if len(fixes) > 0 {
		replay = gps.NewReplay(fixes, *flags.interval, a.logger)
		detach := svc.Attach(replay)
		defer detach()
		svc.UpdatePosition(gps.FixUpdate(fixes[0]))
	}

	if !svc.NavigateTo(*flags.to) {
		return svc.LastError()
	}
	if !svc.Start(ctx) {
		return svc.LastError()
	}

	g, ctx := errgroup.WithContext(ctx)
	if replay != nil {
		g.Go(func() error {
			err := replay.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if svc.State() != services.StateArrived {
				a.logger.Warn("Track ended before arrival")
			}
			cancel()
			return nil
		})
	}
	g.Go(func() error {
		select {
		case <-listener.arrived:
			cancel()
		case <-ctx.Done():
		}
		svc.Stop()
		return nil
	})
	return g.Wait()
}

func statusHandler(svc *services.NavigationService, lookup *buildings.CachedLookup, logger *zap.Logger) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"state": svc.State().String()}
		if session, ok := svc.Session(); ok {
			status["session"] = session.ID
			status["destination"] = session.Destination
			status["waypoint"] = session.WaypointIndex
			status["waypoints"] = len(session.Waypoints)
		}
		if err := svc.LastError(); err != nil {
			status["error"] = err.Error()
		}
		stats := lookup.Stats()
		status["buildingCache"] = map[string]int{
			"entries": stats.TotalEntries,
			"fresh":   stats.FreshEntries,
			"stale":   stats.StaleEntries,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			logger.Warn("Failed to write status", zap.Error(err))
		}
	}
}

func metricsHandler(a *app) func(http.ResponseWriter, *http.Request) {
	if a.metrics == nil {
		return http.NotFound
	}
	return promhttp.HandlerFor(a.metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{}).ServeHTTP
}

// consoleListener prints guidance as it arrives
type consoleListener struct {
	arrived chan struct{}
	once    sync.Once
}

func newConsoleListener() *consoleListener {
	return &consoleListener{arrived: make(chan struct{})}
}

func (l *consoleListener) RouteCalculated(session services.Session) {
	fmt.Printf("Route to %s: %d waypoints\n", session.Destination, len(session.Waypoints))
}

func (l *consoleListener) NavigationUpdate(result services.UpdateResult) {
	p := result.Progress
	switch result.Kind {
	case services.UpdateArrived:
		fmt.Println(p.Instruction)
		l.once.Do(func() { close(l.arrived) })
	case services.UpdateRecalculated:
		fmt.Printf("Route recalculated (%.1f off path). %s, %.1f away\n", p.OffPathDistance, p.Instruction, p.Distance)
	default:
		fmt.Printf("[%d/%d] %s, %.1f away, ETA %s\n", p.WaypointIndex+1, p.WaypointCount, p.Instruction, p.Distance, p.ETAText)
	}
}

func printUsage() {
	fmt.Println("campusnav - walking navigation across the campus road graph")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  campusnav navigate --to <building> [--simulate | --gpx file | --track polyline] [--kml file]")
	fmt.Println("  campusnav serve [--to <building> ...]   Navigate and expose /status and /metrics")
	fmt.Println("  campusnav route --from <building> --to <building>")
	fmt.Println("  campusnav buildings                     List the building catalog")
	fmt.Println("  campusnav help")
	fmt.Println("")
	fmt.Println("All commands accept --config <file>. Settings may also be set with CAMPUSNAV__ environment")
	fmt.Println("variables, e.g. CAMPUSNAV__NAVIGATION__ARRIVAL_DISTANCE=15")
}
