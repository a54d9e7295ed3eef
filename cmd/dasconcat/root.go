package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Antcating/das-concat/internal/assembly"
	"github.com/Antcating/das-concat/internal/checkpoint"
	"github.com/Antcating/das-concat/internal/dasconf"
	"github.com/Antcating/das-concat/internal/daserr"
	"github.com/Antcating/das-concat/internal/daslog"
	"github.com/Antcating/das-concat/internal/dasmetrics"
	"github.com/Antcating/das-concat/internal/dasnotify"
	"github.com/Antcating/das-concat/internal/model"
	"github.com/Antcating/das-concat/internal/packetio"
	"github.com/Antcating/das-concat/internal/resample"
	"github.com/Antcating/das-concat/internal/sink"
)

var configPath string

// RootCommand builds the single das-concat command (spec §6): it runs
// the full C1->C6 pipeline to exhaustion once invoked, resuming from
// whatever checkpoint is present under PATH.NASPATH_final.
func RootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dasconcat",
		Short: "Assemble DAS acquisition packets into fixed-duration chunks",
		RunE:  run,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.ini (defaults to embedded config.yaml only)")
	cmd.PersistentFlags().Int("num_threads", 0, "Number of resampler worker threads (overrides RUNTIME.NUM_THREADS)")
	if err := viper.BindPFlag("runtime.num_threads", cmd.PersistentFlags().Lookup("num_threads")); err != nil {
		fmt.Printf("error binding num_threads flag: %v\n", err)
	}

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	settings, err := dasconf.Load(configPath)
	if err != nil {
		return err
	}

	numThreads, _ := cmd.Flags().GetInt("num_threads")
	if numThreads > 0 {
		settings.Runtime.NumThreads = numThreads
	}

	log := daslog.NewTestLogger()
	if l, err := daslog.NewCentralLogger(&daslog.LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &daslog.ConsoleOutput{Enabled: true, Level: "info"},
	}); err == nil {
		log = l.Module("dasconcat")
	}

	reporter, err := dasnotify.Init("", "")
	if err != nil {
		log.Warn("sentry init failed, continuing without telemetry", daslog.Error(err))
	} else {
		daserr.SetTelemetryReporter(reporter)
	}

	metrics, err := dasmetrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		log.Warn("metrics registration failed, continuing without metrics", daslog.Error(err))
		metrics = nil
	}

	kind := model.Columnar
	if settings.System.Name == dasconf.SystemPrisma {
		kind = model.SegY
	}

	source, err := packetio.NewSource(settings.Path.LocalPath, kind, log.Module("packetio"))
	if err != nil {
		return err
	}

	resampler := resample.New(settings.Constants.SPS, settings.Constants.DX, settings.Runtime.NumThreads, log, metrics)
	supplier := newPipelineSupplier(source, kind, resampler, log)

	chunkSink := sink.New(settings.Path.NASPathFinal, log.Module("sink"))
	ckptStore := checkpoint.New(settings.Path.NASPathFinal, log.Module("checkpoint"))

	engine := assembly.New(assembly.Config{
		SPS:           settings.Constants.SPS,
		ChunkDuration: settings.Constants.ConcatTime,
	}, chunkSink, ckptStore, log, metrics)

	if err := engine.Resume(); err != nil {
		return err
	}

	if err := engine.Run(context.Background(), supplier); err != nil {
		return err
	}

	for _, dir := range source.Sweep() {
		log.Info("directory fully consumed, ready for retention cleanup", daslog.String("dir", dir))
	}

	dasnotify.Flush(reporter)
	return nil
}
