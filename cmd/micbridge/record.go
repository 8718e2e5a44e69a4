package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petrzlen/micbridge/internal/networking"
	"github.com/petrzlen/micbridge/pkg/audio_utils"
	"github.com/petrzlen/micbridge/pkg/audioio"
	"github.com/petrzlen/micbridge/pkg/bridge"
	"github.com/petrzlen/micbridge/pkg/models"
	"github.com/petrzlen/micbridge/pkg/recorder"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	outputPath   string
	pollInterval time.Duration
	maxDuration  time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the microphone until Enter (or Ctrl-C)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecording(cmd, nil, waitForEnter)
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Feed a 16 kHz mono 16 bit wav or flac file through the recorder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecording(cmd, audioio.NewReplay(afero.NewOsFs(), args[0]), nil)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{recordCmd, replayCmd} {
		cmd.Flags().StringVarP(&outputPath, "output", "o", "recording.wav", "where to write the finished recording")
		cmd.Flags().DurationVar(&pollInterval, "poll", 100*time.Millisecond, "how often to drain the capture buffer")
		cmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "stop automatically after this long (0 = no limit)")
	}
}

func waitForEnter(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		fmt.Fprintln(os.Stderr, "Recording... press Enter to stop.")
		_, err := bufio.NewReader(os.Stdin).ReadString('\n')
		dbg(err)
		close(done)
	}()
	return done
}

// runRecording drives the bridge the way a host app would: Start, poll ReadAudio, Stop.
// A nil binding means the microphone. A nil stopSignal means stop once the source runs dry.
func runRecording(cmd *cobra.Command, binding audioio.CaptureBinding, stopSignal func(context.Context) <-chan struct{}) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if maxDuration > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, maxDuration)
		defer cancelTimeout()
	}

	sessionOpts := []recorder.Option{recorder.WithConfig(cfg.CaptureConfig())}
	if cfg.DumpDir != "" {
		sessionOpts = append(sessionOpts, recorder.WithDumper(afero.NewOsFs(), cfg.DumpDir))
	}
	if cfg.MonitorAddr != "" {
		monitor := networking.NewMonitor()
		defer monitor.Close()
		sessionOpts = append(sessionOpts, recorder.WithChunkListener(monitor.Publish))
		serveMonitor(ctx, monitor)
	}

	bridgeOpts := []bridge.Option{
		bridge.WithBackends(cfg.Backends...),
		bridge.WithSessionOptions(sessionOpts...),
	}
	if binding != nil {
		bridgeOpts = append(bridgeOpts, bridge.WithBinding(binding))
	}
	if err := bridge.Initialize(nil, bridgeOpts...); err != nil {
		return err
	}
	defer func() { dbg(bridge.Shutdown()) }()

	if err := bridge.Start(); err != nil {
		return err
	}

	var stopped <-chan struct{}
	if stopSignal != nil {
		stopped = stopSignal(ctx)
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	total := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-stopped:
			break loop
		case <-ticker.C:
			chunk, err := bridge.ReadAudio()
			if err != nil {
				// Partial data stays in the session, Stop still returns it.
				log.Error().Err(err).Msg("capture failed, stopping")
				break loop
			}
			total += len(chunk)
			log.Debug().Int("sample_count", len(chunk)).Int("total_sample_count", total).Msg("polled")
			if stopSignal == nil && len(chunk) == 0 {
				break loop
			}
		}
	}

	waveform, err := bridge.Stop()
	if err != nil {
		return err
	}
	return writeOutput(cmd, waveform)
}

func serveMonitor(ctx context.Context, monitor *networking.Monitor) {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitor", monitor.HandlerFunc())
	server := &http.Server{Addr: cfg.MonitorAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.MonitorAddr).Msg("serving live monitor on /monitor")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("monitor server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		dbg(server.Close())
	}()
}

func writeOutput(cmd *cobra.Command, waveform []float32) error {
	// The waveform is exactly s / 32768, so scaling back is lossless.
	samples := make([]int16, len(waveform))
	for i, v := range waveform {
		samples[i] = int16(v * 32768)
	}
	duration := models.Waveform(waveform).Duration(models.SampleRate)
	if len(samples) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing recorded")
		return nil
	}
	wavData, err := audio_utils.ConvertInt16SamplesToWav(samples, models.SampleRate, models.NumChannels)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(afero.NewOsFs(), outputPath, wavData, 0644); err != nil {
		return errors.Wrapf(err, "cannot write %s", outputPath)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d samples (%s) to %s\n", len(samples), duration, outputPath)
	return nil
}
