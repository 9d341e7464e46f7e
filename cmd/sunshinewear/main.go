package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jitinsharma/sunshine-wear/internal/natsync"
	"github.com/jitinsharma/sunshine-wear/internal/srv"
	"github.com/jitinsharma/sunshine-wear/internal/srv/config"
	"github.com/jitinsharma/sunshine-wear/internal/version"
	"github.com/jitinsharma/sunshine-wear/internal/weather"
	"github.com/sirupsen/logrus"
)

const configSuffix = "sunshinewear"

func main() {

	// Logger
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	mainCommand := filepath.Base(os.Args[0])

	// region Flags and Commands definition

	// Debug Mode
	debugMode := flag.Bool("d", false, "Enable debug mode")

	// Simulation Mode
	simulationMode := flag.Bool("s", false, "Enable simulation mode")

	// User config dir
	defaultConfigDir := "./." + configSuffix
	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		defaultConfigDir = filepath.Join(userConfigDir, configSuffix)
	}
	configDir := flag.String("c", defaultConfigDir, "Location of sunshinewear config folder")

	// Usage
	flag.Usage = func() {
		fmt.Printf("\nUsage: %s [OPTIONS] [COMMAND]\n", mainCommand)
		fmt.Printf("\nA weather watch face\n")
		fmt.Printf("\nOptions:\n")
		flag.PrintDefaults()
		fmt.Printf("\nCommands:\n")
		fmt.Printf("  run       Run server\n")
		fmt.Printf("  push      Push a weather record, as the phone would\n")
		fmt.Printf("  version   Show the version number\n")
		fmt.Printf("\nRun '%s COMMAND --help' for more information on a command.\n", mainCommand)
	}

	// run command
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)

	runCmd.Usage = func() {
		fmt.Printf("\nUsage: %s run\n", mainCommand)
		fmt.Printf("\nRun the server\n")
	}

	// push command
	pushCmd := flag.NewFlagSet("push", flag.ExitOnError)
	pushHigh := pushCmd.String("high", "", "Highest temperature")
	pushLow := pushCmd.String("low", "", "Lowest temperature")
	pushTime := pushCmd.String("time", "", "Time of the forecast, defaults to now")
	pushIcon := pushCmd.String("icon", "", "Path of an icon image (png, jpeg or gif)")

	pushCmd.Usage = func() {
		fmt.Printf("\nUsage: %s push [OPTIONS]\n", mainCommand)
		fmt.Printf("\nPublish a weather record on the data sync channel\n")
		fmt.Printf("\nOptions:\n")
		pushCmd.PrintDefaults()
	}

	// version command
	versionCmd := flag.NewFlagSet("version", flag.ExitOnError)

	versionCmd.Usage = func() {
		fmt.Printf("\nUsage: %s version\n", mainCommand)
		fmt.Printf("\nShow the version information\n")
	}

	// endregion

	// region Flags and Commands Parsing
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	switch flag.Arg(0) {
	case "run":
		runCmd.Parse(flag.Args()[1:])
		if runCmd.NArg() > 0 {
			fmt.Printf("\n\"%s %s\" accepts no arguments\n", mainCommand, flag.Arg(0))
			runCmd.Usage()
			os.Exit(1)
		}
	case "push":
		pushCmd.Parse(flag.Args()[1:])
		if pushCmd.NArg() > 0 || *pushHigh == "" || *pushLow == "" {
			fmt.Printf("\n\"%s %s\" needs -high and -low and accepts no arguments\n", mainCommand, flag.Arg(0))
			pushCmd.Usage()
			os.Exit(1)
		}
	case "version":
		versionCmd.Parse(flag.Args()[1:])
		if versionCmd.NArg() > 0 {
			fmt.Printf("\n\"%s %s\" accepts no arguments\n", mainCommand, flag.Arg(0))
			versionCmd.Usage()
			os.Exit(1)
		}
	default:
		fmt.Printf("\n%s is not a sunshinewear command\n", flag.Args()[0])
		flag.Usage()
		os.Exit(1)
	}
	// endregion

	if *debugMode {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: time.RFC3339Nano})
		logrus.Printf("Debug mode activated")
	}

	switch {
	case versionCmd.Parsed():
		fmt.Printf("Version %s\n", version.AppVersion.String())
	case pushCmd.Parsed():
		serverConfig := config.NewServerConfig(*configDir, *debugMode, *simulationMode)
		fields := weather.Fields{High: *pushHigh, Low: *pushLow, Time: *pushTime}
		if fields.Time == "" {
			fields.Time = time.Now().Format("15:04")
		}
		if err := push(serverConfig.SyncParam, fields, *pushIcon); err != nil {
			logrus.Fatalf("Unable to push weather: %v", err)
		}
		logrus.Printf("Weather pushed")
	case runCmd.Parsed():
		// Create sunshinewear server
		serverApp := srv.NewServerApp(*configDir, *debugMode, *simulationMode)

		// Listen stop signal
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGABRT, syscall.SIGHUP, syscall.SIGUSR1)

		// Start sunshinewear server
		serverApp.Start()

		sig := <-ch
		logrus.Infof("Received signal: %v", sig)
		serverApp.Stop(sig == syscall.SIGUSR1)
	}

}

func push(syncParam config.SyncParam, fields weather.Fields, iconFilename string) error {
	payload, err := weather.EncodePayload(fields)
	if err != nil {
		return err
	}

	var iconName string
	var icon []byte
	if iconFilename != "" {
		icon, err = os.ReadFile(iconFilename)
		if err != nil {
			return err
		}
		if _, err = weather.DecodeImage(icon); err != nil {
			return fmt.Errorf("%s: %w", iconFilename, err)
		}
		iconName = filepath.Base(iconFilename)
	}

	publisher, err := natsync.NewPublisher(natsync.Config{
		URL:            syncParam.NatsUrl,
		SubjectPrefix:  syncParam.SubjectPrefix,
		Stream:         syncParam.Stream,
		AssetBucket:    syncParam.AssetBucket,
		ConnectTimeout: syncParam.ConnectTimeoutDuration(),
	})
	if err != nil {
		return err
	}
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return publisher.Publish(ctx, syncParam.Topic, payload, iconName, icon)
}
