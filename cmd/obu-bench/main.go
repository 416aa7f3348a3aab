// obu-bench drives the three light-status interfaces of an on-board
// unit (JSON-RPC over HTTP, CoAP FETCH over UDP, REST over HTTP) with
// concurrent simulated users and reports per-protocol latency
// percentiles, byte counts, and an error breakdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obulab/obu-bench/internal/client"
	"github.com/obulab/obu-bench/internal/codec"
	"github.com/obulab/obu-bench/internal/config"
	"github.com/obulab/obu-bench/internal/loadgen"
	"github.com/obulab/obu-bench/internal/monitoring"
	"github.com/obulab/obu-bench/internal/report"
	"github.com/obulab/obu-bench/internal/resultsdb"
	"github.com/obulab/obu-bench/internal/stats"
	"github.com/obulab/obu-bench/internal/stubserver"
	"github.com/obulab/obu-bench/internal/version"
)

// teeSink fans each outcome out to every recorder (metrics sink,
// optional results database).
type teeSink struct {
	sinks []loadgen.Sink
}

func (t teeSink) Record(out client.Outcome) {
	for _, s := range t.sinks {
		s.Record(out)
	}
}

func main() {
	cfg := config.FromEnv()

	scenario := flag.String("scenario", "", "YAML scenario file layered over env configuration")
	users := flag.Int("users", cfg.Users, "number of simulated users")
	spawnRate := flag.Float64("spawn-rate", cfg.SpawnRate, "users started per second during ramp-up")
	duration := flag.Duration("duration", cfg.Duration, "benchmark run time")
	csvPath := flag.String("csv", "", "write the summary table as CSV to this file")
	htmlPath := flag.String("html", "", "write an HTML percentile chart to this file")
	resultsPath := flag.String("results", "", "persist outcomes and aggregates to this sqlite file")
	selftest := flag.Bool("selftest", false, "run against in-process stub servers on loopback")
	verbose := flag.Bool("verbose", false, "log per-component diagnostics")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	monitoring.SetVerbose(*verbose)

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if *scenario != "" {
		if err := cfg.ApplyScenario(*scenario); err != nil {
			log.Fatalf("scenario: %v", err)
		}
	}
	// Flags outrank the scenario file, but only when actually given;
	// otherwise they just carry the env-resolved defaults forward.
	if explicit["users"] || *scenario == "" {
		cfg.Users = *users
	}
	if explicit["spawn-rate"] || *scenario == "" {
		cfg.SpawnRate = *spawnRate
	}
	if explicit["duration"] || *scenario == "" {
		cfg.Duration = *duration
	}

	var stubs []interface{ Stop() }
	if *selftest {
		var err error
		stubs, err = startStubs(&cfg, explicit["duration"])
		if err != nil {
			log.Fatalf("selftest setup: %v", err)
		}
		defer func() {
			for _, s := range stubs {
				s.Stop()
			}
		}()
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if err := run(cfg, *csvPath, *htmlPath, *resultsPath); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg config.Config, csvPath, htmlPath, resultsPath string) error {
	weighted := buildAdapters(cfg)
	if len(weighted) == 0 {
		return fmt.Errorf("no usable protocol adapters")
	}

	sink := stats.New()
	recorders := teeSink{sinks: []loadgen.Sink{sink}}

	var db *resultsdb.DB
	if resultsPath != "" {
		var err error
		db, err = resultsdb.Open(resultsPath)
		if err != nil {
			return fmt.Errorf("results db: %w", err)
		}
		defer db.Close()
		recorders.sinks = append(recorders.sinks, db)
		monitoring.Logf("recording outcomes to %s (run %s)", resultsPath, db.RunID())
	}

	vusers, err := loadgen.AssignUsers(cfg.Users, weighted)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	monitoring.Logf("starting %d users at %.1f/s for %s", cfg.Users, cfg.SpawnRate, cfg.Duration)
	h := loadgen.New(loadgen.Config{
		SpawnRate: cfg.SpawnRate,
		ThinkMin:  cfg.ThinkMin,
		ThinkMax:  cfg.ThinkMax,
		Vehicle:   cfg.CarName,
	}, recorders)
	if err := h.Run(runCtx, vusers); err != nil {
		return err
	}

	snaps := sink.SnapshotAll()
	if err := report.WriteTable(os.Stdout, snaps); err != nil {
		return err
	}
	if csvPath != "" {
		if err := writeFile(csvPath, func(f *os.File) error {
			return report.WriteCSV(f, snaps)
		}); err != nil {
			return fmt.Errorf("csv: %w", err)
		}
	}
	if htmlPath != "" {
		if err := writeFile(htmlPath, func(f *os.File) error {
			return report.WriteChart(f, snaps)
		}); err != nil {
			return fmt.Errorf("chart: %w", err)
		}
	}
	if db != nil {
		if err := db.Flush(snaps); err != nil {
			return fmt.Errorf("results db: %w", err)
		}
	}
	return nil
}

// buildAdapters wires one adapter per enabled protocol. A CoAP bridge
// startup failure disables that protocol only; the rest of the run
// proceeds.
func buildAdapters(cfg config.Config) []loadgen.Weighted {
	var weighted []loadgen.Weighted
	if cfg.EnableJSONRPC {
		weighted = append(weighted, loadgen.Weighted{
			Adapter: client.NewJSONRPC(cfg.JSONRPCURL, cfg.RequestTimeout),
			Weight:  cfg.JSONRPCWeight,
		})
	}
	if cfg.EnableCoAP {
		a, err := client.NewCoAP(cfg.CoAPAddr(), cfg.CoAPPath, codec.DefaultTemplate(), cfg.RequestTimeout)
		if err != nil {
			monitoring.Logf("disabling coap: %v", err)
		} else {
			weighted = append(weighted, loadgen.Weighted{Adapter: a, Weight: cfg.CoAPWeight})
		}
	}
	if cfg.EnableREST {
		weighted = append(weighted, loadgen.Weighted{
			Adapter: client.NewREST(cfg.RESTURL, cfg.RequestTimeout),
			Weight:  cfg.RESTWeight,
		})
	}
	return weighted
}

// startStubs brings up loopback servers for all three protocols and
// points the configuration at them. Unless -duration was given the
// selftest runs for 10 seconds, not the full default.
func startStubs(cfg *config.Config, durationSet bool) ([]interface{ Stop() }, error) {
	stub := stubserver.Config{Vehicle: cfg.CarName, Delay: 5 * time.Millisecond}

	coapSrv, err := stubserver.StartCoAP("127.0.0.1:0", stub, codec.DefaultTemplate())
	if err != nil {
		return nil, err
	}
	rpcSrv, err := stubserver.StartHTTP(stubserver.JSONRPCHandler(stub))
	if err != nil {
		coapSrv.Stop()
		return nil, err
	}
	restSrv, err := stubserver.StartHTTP(stubserver.RESTHandler(stub))
	if err != nil {
		coapSrv.Stop()
		rpcSrv.Stop()
		return nil, err
	}

	host, port, err := stubserver.SplitAddr(coapSrv.Addr())
	if err != nil {
		coapSrv.Stop()
		rpcSrv.Stop()
		restSrv.Stop()
		return nil, err
	}
	cfg.JSONRPCURL = rpcSrv.URL()
	cfg.RESTURL = restSrv.URL()
	cfg.CoAPHost = host
	cfg.CoAPPort = port
	if !durationSet {
		cfg.Duration = 10 * time.Second
	}
	monitoring.Logf("selftest: jsonrpc=%s rest=%s coap=%s", rpcSrv.URL(), restSrv.URL(), coapSrv.Addr())
	return []interface{ Stop() }{coapSrv, rpcSrv, restSrv}, nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
