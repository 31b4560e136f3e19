// prisma runs one presentation session: a login gate, three switchable
// identities with their own feeds, and a chat whose messages delete
// themselves. The session is driven from the stdin console and, when
// configured, from remote terminals over MQTT or a serial line.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/kabili207/prisma-go/config"
	"github.com/kabili207/prisma-go/core/clock"
	"github.com/kabili207/prisma-go/core/crypto"
	"github.com/kabili207/prisma-go/core/session"
	"github.com/kabili207/prisma-go/core/store"
	"github.com/kabili207/prisma-go/device/beacon"
	"github.com/kabili207/prisma-go/device/shell"
	"github.com/kabili207/prisma-go/transport"
	"github.com/kabili207/prisma-go/transport/mqtt"
	"github.com/kabili207/prisma-go/transport/serial"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath     string
		name           string
		logLevel       string
		mqttBroker     string
		mqttRoom       string
		serialPort     string
		noConsole      bool
		beaconInterval time.Duration
	)

	flagSet := pflag.NewFlagSet("prisma", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to YAML config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&name, "name", "", "shell display name")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	flagSet.StringVar(&mqttRoom, "mqtt-room", "", "MQTT room shared with terminals")
	flagSet.StringVar(&serialPort, "serial-port", "", "serial port of an attached terminal")
	flagSet.BoolVar(&noConsole, "no-console", false, "disable the stdin console")
	flagSet.DurationVar(&beaconInterval, "beacon-interval", 0, "announce interval, 0 disables")
	flagSet.BoolP("version", "v", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if v, _ := flagSet.GetBool("version"); v {
		fmt.Println("prisma", version)
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if flagSet.Changed("name") {
		cfg.Name = name
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flagSet.Changed("mqtt-broker") {
		cfg.MQTT.Broker = mqttBroker
	}
	if flagSet.Changed("mqtt-room") {
		cfg.MQTT.Room = mqttRoom
	}
	if flagSet.Changed("serial-port") {
		cfg.Serial.Port = serialPort
	}
	if flagSet.Changed("no-console") {
		cfg.Console = !noConsole
	}
	if flagSet.Changed("beacon-interval") {
		cfg.Beacon.Interval = beaconInterval
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	kp, err := loadKeyPair(cfg.KeySeed)
	if err != nil {
		return err
	}
	logger.Info("shell key", "fingerprint", kp.Fingerprint())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.New()
	st := store.New(store.Config{
		Clock:      clk,
		PostExpiry: cfg.Expiry.Post,
		ChatExpiry: cfg.Expiry.Chat,
		Logger:     logger,
	})
	sess := session.New(session.Config{Store: st, Logger: logger})
	sh := shell.New(shell.Config{
		Session: sess,
		KeyPair: kp,
		Clock:   clk,
		Name:    cfg.Name,
		Version: version,
		Logger:  logger,
	})

	go st.Start(ctx)
	defer st.Stop()

	transports, err := startTransports(ctx, cfg, sh, logger)
	defer func() {
		for _, t := range transports {
			if err := t.Stop(); err != nil {
				logger.Warn("stopping transport", "error", err)
			}
		}
	}()
	if err != nil {
		return err
	}

	if len(transports) > 0 {
		b := beacon.New(sh, beacon.Config{
			Name:     cfg.Name,
			Interval: cfg.Beacon.Interval,
			Logger:   logger,
		})
		go b.Start(ctx)
		defer b.Stop()
	}

	if cfg.Console {
		go func() {
			runConsole(ctx, sh, os.Stdin, os.Stdout)
			stop()
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func loadKeyPair(seed string) (*crypto.KeyPair, error) {
	if seed == "" {
		return crypto.GenerateKeyPair()
	}
	return crypto.KeyPairFromHexSeed(seed)
}

// startTransports starts the configured transports and registers them with
// the shell. Transports started before a failure are returned so the caller
// can stop them.
func startTransports(ctx context.Context, cfg *config.Config, sh *shell.Shell, logger *slog.Logger) ([]transport.Transport, error) {
	var started []transport.Transport

	if cfg.MQTT.Broker != "" {
		t := mqtt.New(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			UseTLS:      cfg.MQTT.UseTLS,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Room:        cfg.MQTT.Room,
			Logger:      logger,
		})
		sh.AddTransport(t, transport.FrameSourceMQTT)
		if err := t.Start(ctx); err != nil {
			return started, fmt.Errorf("starting mqtt transport: %w", err)
		}
		started = append(started, t)
	}

	if cfg.Serial.Port != "" {
		t := serial.New(serial.Config{
			Port:     cfg.Serial.Port,
			BaudRate: cfg.Serial.BaudRate,
			Logger:   logger,
		})
		sh.AddTransport(t, transport.FrameSourceSerial)
		if err := t.Start(ctx); err != nil {
			return started, fmt.Errorf("starting serial transport: %w", err)
		}
		started = append(started, t)
	}

	return started, nil
}

// runConsole executes one command per input line until EOF or ctx is done.
func runConsole(ctx context.Context, sh *shell.Shell, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "prisma: type 'help' for commands")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if reply := sh.Execute(scanner.Text()); reply != "" {
			fmt.Fprintln(out, reply)
		}
	}
}
