// Command kioskd drives the display of a single-page kiosk: it dims the
// backlight after inactivity, routes touch and remote-key input, opens the
// settings surface on a tap unlock gesture and reports state over MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/sweeney/kioskd/internal/backlight"
	"github.com/sweeney/kioskd/internal/gpio"
	"github.com/sweeney/kioskd/internal/input"
	"github.com/sweeney/kioskd/internal/kiosk"
	"github.com/sweeney/kioskd/internal/logic"
	"github.com/sweeney/kioskd/internal/loop"
	"github.com/sweeney/kioskd/internal/mqtt"
	"github.com/sweeney/kioskd/internal/settings"
	"github.com/sweeney/kioskd/internal/status"
	"github.com/sweeney/kioskd/internal/web"
)

// off disables an optional component when passed as its flag value.
const off = "off"

type config struct {
	settingsPath   string
	broker         string
	httpAddr       string
	backlightDir   string
	buttonChip     string
	buttonPin      int
	buttonDebounce time.Duration
	heartbeat      time.Duration
	kioskID        string
	requiredTaps   int
	tapGap         time.Duration
	unlockWindow   time.Duration
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func parseFlags(args []string) (config, error) {
	var cfg config
	fs := pflag.NewFlagSet("kioskd", pflag.ContinueOnError)
	fs.StringVar(&cfg.settingsPath, "settings", "/var/lib/kioskd/settings.yaml", "Settings file")
	fs.StringVar(&cfg.broker, "broker", "tcp://192.168.1.200:1883", `MQTT broker address ("off" disables)`)
	fs.StringVar(&cfg.httpAddr, "http", ":80", "HTTP status address (empty to disable); /api/input only accepts loopback clients")
	fs.StringVar(&cfg.backlightDir, "backlight", backlight.DefaultDir, `Backlight sysfs directory ("off" disables)`)
	fs.StringVar(&cfg.buttonChip, "button-chip", gpio.DefaultChip, `GPIO chip for the remote center key ("off" disables)`)
	fs.IntVar(&cfg.buttonPin, "button-pin", gpio.DefaultPin, "BCM pin number for the remote center key")
	fs.DurationVar(&cfg.buttonDebounce, "button-debounce", gpio.DefaultDebounce, "Center key debounce period")
	fs.DurationVar(&cfg.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	fs.StringVar(&cfg.kioskID, "kiosk-id", "", "Kiosk identifier used in MQTT topics (default: hostname)")
	fs.IntVar(&cfg.requiredTaps, "required-taps", logic.DefaultRequiredTaps, "Taps needed to unlock settings")
	fs.DurationVar(&cfg.tapGap, "tap-gap", logic.DefaultTapGap, "Maximum gap between unlock taps")
	fs.DurationVar(&cfg.unlockWindow, "unlock-window", kiosk.DefaultUnlockWindow, "How long settings stay unlocked")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if cfg.kioskID == "" {
		cfg.kioskID = defaultKioskID()
	}
	if cfg.requiredTaps <= 0 {
		return cfg, fmt.Errorf("--required-taps must be positive, got %d", cfg.requiredTaps)
	}
	if cfg.tapGap <= 0 {
		return cfg, fmt.Errorf("--tap-gap must be positive, got %v", cfg.tapGap)
	}
	return cfg, nil
}

func defaultKioskID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "kiosk"
	}
	// Topic levels must not contain wildcards or separators.
	return strings.NewReplacer("/", "-", "+", "-", "#", "-").Replace(host)
}

func enabled(v string) bool {
	return v != "" && v != off
}

func run(cfg config) error {
	sessionID := uuid.New().String()

	var actuator backlight.Actuator = backlight.Discard{}
	if enabled(cfg.backlightDir) {
		sysfs, err := backlight.NewSysfs(cfg.backlightDir)
		if err != nil {
			return fmt.Errorf("init backlight: %w", err)
		}
		actuator = sysfs
	} else {
		cfg.backlightDir = ""
	}

	// Commands arrive on paho goroutines; they are applied from runLoop.
	cmds := make(chan string, 8)

	var publisher *mqtt.RealPublisher
	if enabled(cfg.broker) {
		var err error
		publisher, err = mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.broker,
			ClientID: "kioskd-" + cfg.kioskID + "-" + sessionID[:8],
			KioskID:  cfg.kioskID,
			OnCommand: func(cmd string) {
				select {
				case cmds <- cmd:
				default:
					log.Printf("mqtt: command queue full, dropping %q", cmd)
				}
			},
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer publisher.Close()
	} else {
		cfg.broker = ""
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		KioskID:        cfg.kioskID,
		SessionID:      sessionID,
		Broker:         cfg.broker,
		HTTPAddr:       cfg.httpAddr,
		SettingsPath:   cfg.settingsPath,
		Backlight:      cfg.backlightDir,
		HeartbeatMs:    cfg.heartbeat.Milliseconds(),
		RequiredTaps:   cfg.requiredTaps,
		TapGapMs:       cfg.tapGap.Milliseconds(),
		UnlockWindowMs: cfg.unlockWindow.Milliseconds(),
	}, nil)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := loop.New(loop.DefaultQueueSize)
	go func() {
		if err := events.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("event loop error: %v", err)
		}
	}()

	opts := kiosk.Options{
		Loop:         events,
		Store:        settings.NewFileStore(cfg.settingsPath),
		Actuator:     actuator,
		Tracker:      tracker,
		RequiredTaps: cfg.requiredTaps,
		TapGap:       cfg.tapGap,
		UnlockWindow: cfg.unlockWindow,
	}
	// A nil *RealPublisher must not end up in a non-nil interface.
	if publisher != nil {
		opts.Publisher = publisher
		opts.Conn = publisher
	}
	session := kiosk.New(opts)
	session.Start(ctx)
	defer session.Close()

	if enabled(cfg.buttonChip) {
		button, err := gpio.NewRealButton(cfg.buttonChip, cfg.buttonPin, cfg.buttonDebounce, func() {
			session.Input(input.CenterKey)
		})
		if err != nil {
			// The touch screen still works without the remote.
			log.Printf("center key unavailable: %v", err)
		} else {
			defer button.Close()
		}
	}

	// Publish startup event with full status snapshot
	if err := session.PublishSystem(kiosk.EventStartup, "", true); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else if publisher != nil {
		log.Printf("published startup event")
	}

	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker, session)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.httpAddr)
	}

	log.Printf("started: kiosk=%s session=%s broker=%s heartbeat=%v settings=%s",
		cfg.kioskID, sessionID, cfg.broker, cfg.heartbeat, cfg.settingsPath)

	var heartbeat <-chan time.Time
	if cfg.heartbeat > 0 {
		ticker := time.NewTicker(cfg.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(session, tracker, heartbeat, cmds, sigCh)
}

func runLoop(session *kiosk.Session, tracker *status.Tracker, heartbeat <-chan time.Time, cmds <-chan string, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			session.Pause()
			if err := session.PublishSystem(kiosk.EventShutdown, signalName, true); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case cmd := <-cmds:
			log.Printf("command: %s", cmd)
			session.Command(cmd)

		case <-heartbeat:
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			session.Heartbeat()
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
