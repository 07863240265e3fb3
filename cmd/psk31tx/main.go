package main

/*------------------------------------------------------------------
 *
 * Purpose:	Command-line entry point: `serve`, `selftest`, and
 *		`monitor` subcommands over the psk31 package (spec §6).
 *
 * Description:	Grounded on the teacher's cmd/direwolf/main.go as the
 *		top-level wiring point, generalized from direct pflag use
 *		to github.com/spf13/cobra subcommands per SPEC_FULL.md.
 *
 *------------------------------------------------------------------*/

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/doismellburning/psk31tx/src"
	"github.com/spf13/cobra"
)

func main() {
	cfg := psk31.DefaultConfig()

	root := &cobra.Command{ //nolint:exhaustruct
		Use:   "psk31tx",
		Short: "PSK31 transmitter for Raspberry Pi (BCM283x) GPIO",
	}

	serveCmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "serve",
		Short: "run the transmitter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}
	cfg.RegisterFlags(serveCmd.Flags())

	selftestCmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "selftest",
		Short: "compile the waveform library and report diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			hardware, _ := cmd.Flags().GetBool("hardware")
			return runSelftest(cfg, hardware)
		},
	}
	cfg.RegisterFlags(selftestCmd.Flags())
	selftestCmd.Flags().Bool("hardware", false, "map the peripherals and pinned arena, compile the waveform library and print level_error_max; without it only amplitude and rc are printed")

	monitorCmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "monitor",
		Short: "connect to a running transmitter's status socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			follow, _ := cmd.Flags().GetBool("follow")
			return runMonitor(follow)
		},
	}
	monitorCmd.Flags().Bool("follow", false, "reconnect and print the snapshot every second")

	root.AddCommand(serveCmd, selftestCmd, monitorCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cfg *psk31.Config) error {
	if cfg.ConfigFile == "" {
		return nil
	}

	fileCfg, err := psk31.LoadConfigFile(cfg.ConfigFile)
	if err != nil {
		return err
	}

	// Flags already parsed into cfg win; only fields still at their
	// zero/default value are overwritten by the file. This is the
	// teacher's own "flags override config file" precedence applied to
	// struct fields rather than a getopt table.
	zero := psk31.DefaultConfig()
	if cfg.Amplitude == zero.Amplitude {
		cfg.Amplitude = fileCfg.Amplitude
	}
	if cfg.RC == zero.RC {
		cfg.RC = fileCfg.RC
	}
	if cfg.Frequency == zero.Frequency {
		cfg.Frequency = fileCfg.Frequency
	}
	if cfg.ClockDiv == 0 {
		cfg.ClockDiv = fileCfg.ClockDiv
	}
	if cfg.Mash == zero.Mash {
		cfg.Mash = fileCfg.Mash
	}
	if !cfg.PCM {
		cfg.PCM = fileCfg.PCM
	}
	if cfg.Timeout == zero.Timeout {
		cfg.Timeout = fileCfg.Timeout
	}
	if cfg.PeripheralBaseOverride == "" {
		cfg.PeripheralBaseOverride = fileCfg.PeripheralBaseOverride
	}
	if cfg.HamlibRig == zero.HamlibRig {
		cfg.HamlibRig = fileCfg.HamlibRig
	}
	if cfg.HamlibPort == "" {
		cfg.HamlibPort = fileCfg.HamlibPort
	}
	if cfg.StatusTCPPort == 0 {
		cfg.StatusTCPPort = fileCfg.StatusTCPPort
	}

	return nil
}

func runServe(cfg psk31.Config) error {
	if err := loadConfig(&cfg); err != nil {
		return err
	}

	psk31.SetLogLevel(cfg.Debug)

	psk31.UnlinkBoundaryFiles()
	if err := psk31.CreateDataFIFOs(); err != nil {
		return err
	}
	defer psk31.UnlinkBoundaryFiles()

	var bases psk31.PeripheralBases

	var err error
	if cfg.PeripheralBaseOverride != "" {
		bases, err = psk31.OverridePeripheralBases(cfg.PeripheralBaseOverride)
	} else {
		bases, err = psk31.DetectPeripheralBases()
	}
	if err != nil {
		return err
	}

	if err := psk31.CheckGPIOLinesAvailable("gpiochip0"); err != nil {
		return err
	}

	pm, err := psk31.OpenPeripheralMap(bases)
	if err != nil {
		return err
	}
	defer pm.Close()

	arena, err := psk31.NewArena(psk31.ArenaNumPages, psk31.ArenaNumPagesCBs)
	if err != nil {
		return err
	}
	defer arena.Close()

	pacingMode := psk31.PacingPWM
	if cfg.PCM {
		pacingMode = psk31.PacingPCM
	}
	pacing := psk31.NewPacing(pm, pacingMode)
	pacing.Init()

	clock := psk31.NewClock(pm)
	if err := clock.Start(psk31.ClockConfig{
		Div:       cfg.ClockDiv,
		Frequency: cfg.Frequency,
		Mash:      cfg.Mash,
	}); err != nil {
		return err
	}

	compiler, err := psk31.NewWaveformCompiler(arena, pm, bases, pacing, cfg.Amplitude, cfg.RC, psk31.ArenaCBRegionLen, psk31.ArenaSampleWordsOffset)
	if err != nil {
		return err
	}

	engine := psk31.NewEngine(arena, pm, clock, pacing, compiler)
	if err := engine.Compile(); err != nil {
		return err
	}

	quit := psk31.InstallSignalHandlers(engine)

	if err := engine.Start(); err != nil {
		return err
	}

	var rig *psk31.RigPTT
	if cfg.HamlibRig >= 0 {
		rig, err = psk31.NewRigPTT(cfg.HamlibRig, cfg.HamlibPort, cfg.HamlibBaud)
		if err != nil {
			return err
		}
		defer rig.Close()
	}

	modulator := psk31.NewModulator(cfg.Timeout)

	fifo, err := psk31.OpenDataFIFO()
	if err != nil {
		return err
	}
	// RunLoop takes ownership from here: it closes fifo on EOF and reopens
	// a fresh FIFO for the next writer, so an outer defer here would close
	// a stale fd once a reopen has happened.

	snapshot := func() psk31.StatusPayload {
		state := clock.State()
		return psk31.StatusPayload{
			Amplitude:   cfg.Amplitude,
			RC:          cfg.RC,
			ClockDiv:    state.Div,
			ClockMash:   state.Mash,
			ClockFreq:   state.Freq,
			Timeout:     cfg.Timeout,
			PendingChar: modulator.PendingChar(),
		}
	}

	status, err := psk31.NewStatusServer(snapshot)
	if err != nil {
		return err
	}
	defer status.Close()

	if cfg.StatusTCPPort != 0 {
		if err := status.AdvertiseTCPMirror(cfg.StatusTCPPort); err != nil {
			return err
		}
	}

	var monitor *psk31.Monitor
	monitor, err = psk31.NewMonitor()
	if err != nil {
		return err
	}
	defer monitor.Close()

	var console *psk31.Console
	var consoleQuit <-chan struct{}
	if cfg.Foreground {
		console, err = psk31.OpenConsole()
		if err != nil {
			return err
		}
		defer console.Close()
		consoleQuit = console.Quit()
	}

	loopQuit := mergeQuit(quit, consoleQuit)

	// A nil *RigPTT boxed directly into RunLoop's keyer interface would
	// compare non-nil there (a typed nil pointer in an interface value);
	// pass an untyped nil explicitly when no rig was configured.
	var keyer interface{ Key(on bool) error }
	if rig != nil {
		keyer = rig
	}

	if err := psk31.RunLoop(fifo, modulator, engine, status, monitor, console, keyer, psk31.OpenDataFIFO, compiler.LevelErrorMax(), loopQuit); err != nil {
		_ = psk31.Terminate(engine)
		return err
	}

	return psk31.Terminate(engine)
}

func mergeQuit(a, b <-chan struct{}) <-chan struct{} {
	if b == nil {
		return a
	}

	out := make(chan struct{})
	go func() {
		select {
		case <-a:
		case <-b:
		}
		close(out)
	}()

	return out
}

func runSelftest(cfg psk31.Config, hardware bool) error {
	if err := loadConfig(&cfg); err != nil {
		return err
	}

	if !hardware {
		fmt.Println("selftest: --hardware not given; nothing compiled, no registers touched")
		fmt.Printf("amplitude=%g rc=%g\n", cfg.Amplitude, cfg.RC)
		return nil
	}

	bases, err := psk31.DetectPeripheralBases()
	if err != nil {
		return err
	}

	pm, err := psk31.OpenPeripheralMap(bases)
	if err != nil {
		return err
	}
	defer pm.Close()

	arena, err := psk31.NewArena(psk31.ArenaNumPages, psk31.ArenaNumPagesCBs)
	if err != nil {
		return err
	}
	defer arena.Close()

	pacing := psk31.NewPacing(pm, psk31.PacingPWM)
	pacing.Init()

	compiler, err := psk31.NewWaveformCompiler(arena, pm, bases, pacing, cfg.Amplitude, cfg.RC, psk31.ArenaCBRegionLen, psk31.ArenaSampleWordsOffset)
	if err != nil {
		return err
	}

	for _, kind := range []psk31.SymbolKind{psk31.SymL, psk31.SymH, psk31.SymLH, psk31.SymHL} {
		if _, err := compiler.CompileBS(kind); err != nil {
			return err
		}
	}

	fmt.Printf("level_error_max=%.6f\n", compiler.LevelErrorMax())

	return nil
}

func runMonitor(follow bool) error {
	connect := func() error {
		c, err := net.Dial("unix", psk31.DevfileStat)
		if err != nil {
			return fmt.Errorf("psk31: failed to connect to %s: %w", psk31.DevfileStat, err)
		}
		defer c.Close()

		scanner := bufio.NewScanner(c)
		for scanner.Scan() {
			fmt.Println(scanner.Text())
		}

		return scanner.Err()
	}

	if !follow {
		return connect()
	}

	for {
		if err := connect(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}

		fmt.Println("---")
		time.Sleep(time.Second)
	}
}
