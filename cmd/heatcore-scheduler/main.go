// Command heatcore-scheduler serves the control-plane HTTP contract
// (§6) over the SQL store: the zone daemon (cmd/heatcore) talks to an
// instance of this process via internal/schedulerclient. Startup runs
// config -> logging -> store -> HTTP server -> signal handling; the
// HTTP server takes the place of cmd/heatcore's run loop.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heatcore/internal/config"
	"github.com/thatsimonsguy/heatcore/internal/httpapi"
	"github.com/thatsimonsguy/heatcore/internal/logging"
	"github.com/thatsimonsguy/heatcore/internal/model"
	"github.com/thatsimonsguy/heatcore/internal/store"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	zones, sensors := seedZonesAndSensors(cfg)
	if err := st.SeedZonesAndSensors(zones, sensors); err != nil {
		log.Fatal().Err(err).Msg("failed to seed zones and sensors from configuration")
	}

	addr := os.Getenv("HEATCORE_SCHEDULER_ADDR")
	if addr == "" {
		addr = ":8090"
	}

	server := httpapi.New(st)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("scheduler HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("scheduler HTTP server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutdown signal received, exiting")
	_ = httpServer.Close()
}

func seedZonesAndSensors(cfg config.Config) (zones []model.Zone, sensors []model.Sensor) {
	for _, z := range cfg.Zones {
		zones = append(zones, model.Zone{ID: z.ZoneID, Name: z.Name, BoilerRelay: z.BoilerRelay, SensorID: z.SensorID})
	}
	for _, s := range cfg.Sensors {
		sensors = append(sensors, model.Sensor{ID: s.SensorID, Name: s.Name, Locator: s.Locator})
	}
	return zones, sensors
}
