package cmd

import (
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/named-data/ndnd-ncc/fw/core"
	"github.com/named-data/ndnd-ncc/fw/fw"
	"github.com/named-data/ndnd-ncc/fw/mgmt"
	"github.com/spf13/cobra"
)

// Version is the daemon's reported version string.
const Version = "ndnd-ncc 0.1.0"

var config = core.DefaultConfig()

var CmdYaNFD = &cobra.Command{
	Use:     "yanfd CONFIG-FILE",
	Short:   "Yet another NDN Forwarding Daemon",
	GroupID: "run",
	Version: Version,
	Args:    cobra.ExactArgs(1),
	Run:     run,
}

// Registers command-line flags for enabling CPU, memory, and block profiling in the Core configuration by specifying output file paths.
func init() {
	CmdYaNFD.Flags().StringVar(&config.Core.CpuProfile, "cpu-profile", "", "Write CPU profile to file")
	CmdYaNFD.Flags().StringVar(&config.Core.MemProfile, "mem-profile", "", "Write memory profile to file")
	CmdYaNFD.Flags().StringVar(&config.Core.BlockProfile, "block-profile", "", "Write block profile to file")
	CmdYaNFD.Flags().StringVar(&config.Core.StateDir, "state-dir", "", "Directory for durable measurements/strategy-choice state (empty keeps both in-memory)")
}

// Initializes and starts a YaNFD daemon using the provided configuration file, handles graceful shutdown on interrupt signals, and logs the exit.
func run(cmd *cobra.Command, args []string) {
	configfile := args[0]
	config.Core.BaseDir = filepath.Dir(configfile)

	// read configuration file
	if err := core.ReadYaml(config, configfile); err != nil {
		core.Log.Fatal(forwarderCmdSubject{}, "Unable to read configuration file", "err", err)
	}

	profiler := NewProfiler(config)
	if err := profiler.Start(); err != nil {
		core.Log.Fatal(profiler, "Unable to start profiler", "err", err)
	}

	// create forwarder instance
	yanfd := fw.NewForwarder(config)
	yanfd.Start()

	if config.Core.DebugListen != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/trace", yanfd.Trace().ServeHTTP)
		mux.Handle("/strategy-choice", mgmt.NewStrategyChoiceModule(yanfd.Fib()))
		go func() {
			if err := http.ListenAndServe(config.Core.DebugListen, mux); err != nil {
				core.Log.Warn(forwarderCmdSubject{}, "Debug HTTP surface stopped", "err", err)
			}
		}()
		core.Log.Info(forwarderCmdSubject{}, "Debug HTTP surface listening", "addr", config.Core.DebugListen)
	}

	// set up signal handler channel and wait for interrupt
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, os.Interrupt, syscall.SIGTERM)
	receivedSig := <-sigChannel
	core.Log.Info(yanfd, "Received signal - exit", "signal", receivedSig)

	yanfd.Stop()
	profiler.Stop()
}

type forwarderCmdSubject struct{}

func (forwarderCmdSubject) String() string { return "cmd" }
