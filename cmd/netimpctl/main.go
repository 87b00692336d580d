// Command netimpctl demonstrates wiring an [netimp.Engine] against the
// in-memory fake diverter and printing statistics on a timer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/apex/log"
	apexcli "github.com/apex/log/handlers/cli"

	"github.com/netimp/netimp"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	filterName := flag.String("filter", "All traffic", "name of a built-in filter preset")
	lossRate := flag.Float64("loss", 0, "loss_rate percentage to apply (0-100)")
	latencyMs := flag.Uint64("latency-ms", 0, "fixed latency_ms to apply")
	duration := flag.Duration("duration", 10*time.Second, "how long to run before stopping")
	flag.Parse()

	logger := netimp.NewApexLogger(apexcli.Default)

	var startCfg netimp.StartConfig
	presets := netimp.DefaultFilterPresets()
	if *configPath != "" {
		fileCfg, err := netimp.LoadConfigFile(*configPath)
		if err != nil {
			log.Errorf("netimpctl: %s", err.Error())
			os.Exit(int(netimp.ExitDriverOpenFailed))
		}
		presets = fileCfg.Presets()
		startCfg = fileCfg.StartConfig("")
	}

	filter := ""
	for _, p := range presets {
		if p.Name == *filterName {
			filter = p.Expression
		}
	}
	startCfg.Filter = filter

	engine := netimp.NewEngine(logger)
	engine.Loss.SetEnabled(*lossRate > 0)
	engine.Loss.SetLossRate(*lossRate)
	engine.Latency.SetEnabled(*latencyMs > 0)
	engine.Latency.SetLatency(uint32(*latencyMs))

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	diverter := netimp.NewFakeDiverter()
	if err := engine.Start(ctx, diverter, startCfg); err != nil {
		log.Errorf("netimpctl: failed to start: %s", err.Error())
		os.Exit(int(netimp.ExitDriverOpenFailed))
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			stats := engine.Stats()
			fmt.Printf("captured=%d injected=%d dropped=%d batches=%d\n",
				stats.PacketsCaptured, stats.PacketsInjected,
				stats.PacketsDropped, stats.BatchCount)
		}
	}

	if err := engine.Stop(); err != nil {
		log.Errorf("netimpctl: failed to stop cleanly: %s", err.Error())
		os.Exit(int(netimp.ExitDriverOpenFailed))
	}
	os.Exit(int(netimp.ExitOK))
}
