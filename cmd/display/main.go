package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DAVIDafergan/liveraise/internal/config"
	"github.com/DAVIDafergan/liveraise/internal/models"
	"github.com/DAVIDafergan/liveraise/pkg/displayclient"
)

// Terminal display client: polls a campaign and prints the running total
// plus a celebration line for every new donation. Useful for smoke testing
// a deployment without a browser.
func main() {
	serverURL := flag.String("server", "http://localhost:8080", "LiveRaise server base URL")
	slug := flag.String("slug", "demo", "campaign slug to follow")
	flag.Parse()

	cfg := config.LoadDisplayConfig()

	dispatcher := displayclient.NewDispatcher(cfg.TriggerLifetime, cfg.MaxTriggerQueue)
	dispatcher.OnVisual(func(t displayclient.Trigger) {
		log.Printf("🎉 %s donated %d%s", t.Donation.DonorName, t.Donation.Amount, dedicationSuffix(t.Donation))
	})

	client := displayclient.NewClient(*serverURL, cfg.PollTimeout)
	poller := displayclient.NewPoller(client, *slug, cfg.PollInterval, cfg.PollTimeout, dispatcher)
	poller.OnSnapshot = func(snapshot *models.Snapshot, fresh []models.Donation) {
		c := snapshot.Campaign
		log.Printf("[%s] total %d / %d %s (%d donations shown, %d new)",
			c.Slug, c.DisplayTotal(), c.TargetAmount, c.Currency, len(snapshot.Donations), len(fresh))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	log.Printf("Following campaign %q on %s (poll every %s)", *slug, *serverURL, cfg.PollInterval)
	poller.Run(ctx)
	log.Println("Display client stopped")
}

func dedicationSuffix(d models.Donation) string {
	if d.Dedication == "" {
		return ""
	}
	return " (\"" + d.Dedication + "\")"
}
