// dnstun - DNS redirection tunnel with tray UI
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/user/dnstun/internal/boot"
	"github.com/user/dnstun/internal/config"
	"github.com/user/dnstun/internal/core"
	"github.com/user/dnstun/internal/dns"
	"github.com/user/dnstun/internal/elevate"
	"github.com/user/dnstun/internal/logger"
	"github.com/user/dnstun/internal/metrics"
	"github.com/user/dnstun/internal/notify"
	"github.com/user/dnstun/internal/power"
	"github.com/user/dnstun/internal/tun"
	"github.com/user/dnstun/internal/ui"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to config.yaml")
	trigger := flag.String("trigger", "", "trigger that launched the process: boot-completed, package-replaced or quickboot-poweron")
	flag.Parse()

	// The TUN device and resolver settings require root
	if !elevate.IsAdmin() {
		fmt.Println("Not running as root, requesting elevation...")
		if err := elevate.RunAsAdmin(); err != nil {
			log.Fatalf("Failed to elevate privileges: %v\nPlease run as root.", err)
		}
		return // elevated process was launched
	}

	if err := logger.Init(); err != nil {
		log.Printf("File logging disabled: %v", err)
	}
	logger.Info("dnstun starting")

	configManager := config.NewManager(*configPath)
	if err := configManager.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := configManager.Get()
	logger.SetLevel(cfg.Log.Level)

	var notifier ui.Notifier
	var prompter core.Prompter
	client, err := notify.Dial()
	if err != nil {
		logger.Warning("Desktop notifications unavailable: %v", err)
	} else {
		defer client.Close()
		notifier = client
		prompter = core.NewNotifyPrompter(client)
	}

	surface := ui.NewSurface(notifier, ui.TrayOverlay())
	service := core.NewService(configManager, core.Options{
		Establisher: tun.NewBuilder(cfg.Interface.Name, dns.NewManager()),
		Surface:     surface,
		Prompter:    prompter,
	})
	surface.Bind(service.Escalation())
	service.Start()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.SafeGo("metrics-server", func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Listen); err != nil {
			logger.Error("Metrics server: %v", err)
		}
	})
	if err := power.Watch(ctx, service.HandlePowerEvent); err != nil {
		logger.Warning("Power events unavailable: %v", err)
	}
	logger.SafeGo("signal-quit", func() {
		<-ctx.Done()
		ui.Quit()
	})

	// Start systray (blocks until quit)
	ui.Run(service, func() {
		if *trigger != "" {
			service.HandleTrigger(boot.ParseSignal(*trigger))
		}
	})
}
