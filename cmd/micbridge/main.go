package main

import (
	"os"
	"runtime/debug"

	"github.com/petrzlen/micbridge/internal/config"
	"github.com/petrzlen/micbridge/internal/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "micbridge",
	Short: "Record 16 kHz mono speech from the microphone",
	Long: `micbridge - capture microphone audio in the format speech models want.

Configuration is read from .env and the environment:
  MICBRIDGE_LOG_LEVEL     trace, debug, info, warn, error (default info)
  MICBRIDGE_CHUNK_SIZE    samples per capture chunk (default 4096)
  MICBRIDGE_DUMP_DIR      write every finished recording as a wav into this dir
  MICBRIDGE_MONITOR_ADDR  serve live chunks on ws://<addr>/monitor
  MICBRIDGE_BACKEND       comma separated miniaudio backends, e.g. aaudio,opensl`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if verbose {
			cfg.LogLevel = zerolog.DebugLevel
		}
		utils.SetupZerolog(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(recordCmd, replayCmd, devicesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		ftl(err)
	}
}

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

func ftl(err error) {
	if err != nil {
		log.Error().Err(err).Msg("sth essential failed")
		if verbose {
			debug.PrintStack()
		}
		os.Exit(1)
	}
}
