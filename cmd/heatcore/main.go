// Command heatcore is the zone-control daemon: it loads configuration,
// connects to the message bus and the control plane, builds one zone
// controller per configured zone, and drives them from a 1Hz tick
// until a shutdown signal arrives: config -> logging -> control-plane
// client and local cache -> run loop -> signal handling.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heatcore/internal/config"
	"github.com/thatsimonsguy/heatcore/internal/debouncer"
	"github.com/thatsimonsguy/heatcore/internal/gradient"
	"github.com/thatsimonsguy/heatcore/internal/localcache"
	"github.com/thatsimonsguy/heatcore/internal/logging"
	"github.com/thatsimonsguy/heatcore/internal/metrics"
	"github.com/thatsimonsguy/heatcore/internal/model"
	"github.com/thatsimonsguy/heatcore/internal/mqtt"
	"github.com/thatsimonsguy/heatcore/internal/multizone"
	"github.com/thatsimonsguy/heatcore/internal/schedulerclient"
	"github.com/thatsimonsguy/heatcore/internal/thermostat"
	"github.com/thatsimonsguy/heatcore/internal/weather"
	"github.com/thatsimonsguy/heatcore/internal/zonecontroller"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)

	log.Info().Str("control_plane", cfg.ControlPlaneURL).Int("zones", len(cfg.Zones)).Msg("starting heatcore")

	var auth *schedulerclient.BasicAuth
	if cfg.ControlPlaneUser != "" {
		auth = &schedulerclient.BasicAuth{Username: cfg.ControlPlaneUser, Password: cfg.ControlPlanePassword}
	}
	schedClient := schedulerclient.New(cfg.ControlPlaneURL, auth)

	cache := localcache.New(cfg.ZoneCacheFile)
	zones, sensors := loadZoneInfo(schedClient, cache, cfg)

	metricsClient := metrics.New(cfg.Datadog.AgentAddr, cfg.Datadog.Namespace, cfg.Datadog.Tags)

	weatherClient := weather.NewOpenWeatherClient("", cfg.Weather.APIKey, cfg.Weather.Location)
	cachedWeather := weather.New(weatherClient)

	broker := fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port)
	opts := mqttlib.NewClientOptions().AddBroker(broker).SetClientID(cfg.MQTT.ClientID)
	if cfg.MQTT.User != "" {
		opts.SetUsername(cfg.MQTT.User).SetPassword(cfg.MQTT.Password)
	}
	pahoClient, err := mqtt.NewPahoClient(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to message bus")
	}
	adapter := mqtt.New(pahoClient, "heating.demand_request", "heating.info")

	sensorsByID := map[int]model.Sensor{}
	for _, s := range sensors {
		sensorsByID[s.ID] = s
	}

	var zoneControllers []multizone.ZoneController
	for _, z := range zones {
		zc := buildZoneController(z, adapter, cachedWeather, schedClient, metricsClient)
		zoneControllers = append(zoneControllers, zc)

		locator := sensorsByID[z.SensorID].Locator
		boundZC := zc
		if err := adapter.SubscribeSensor(locator, func(r model.TempReading) {
			when := time.Now()
			r.When = when
			boundZC.UpdateTemperature(r, when)
		}); err != nil {
			log.Error().Err(err).Int("zone", z.ID).Msg("failed to subscribe sensor topic")
		}
		if err := adapter.SubscribeBoilerInfo(z.BoilerRelay, func(on bool) { boundZC.BoilerEdge(on, time.Now()) }); err != nil {
			log.Error().Err(err).Int("zone", z.ID).Msg("failed to subscribe boiler info topic")
		}
	}

	mz := multizone.New(schedClient, zoneControllers)

	if err := adapter.SubscribeScheduleChange(func() {
		if err := mz.RefreshPolicy(context.Background(), time.Now()); err != nil {
			log.Error().Err(err).Msg("failed to refresh schedule after a bus notification")
		}
	}); err != nil {
		log.Error().Err(err).Msg("failed to subscribe schedule-change topics")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go mz.Run(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutdown signal received, exiting")
}

// buildZoneController assembles one zone's full stack: debouncer (with
// a metrics-counting sink wrapper) driving a thermostat, a gradient
// monitor, and the shared collaborators.
func buildZoneController(
	z model.Zone,
	adapter *mqtt.Adapter,
	cachedWeather *weather.CachedWeather,
	schedClient *schedulerclient.Client,
	metricsClient *metrics.Client,
) *zonecontroller.Controller {
	relaySink := adapter.NewRelaySink(z.BoilerRelay)
	countingSink := metrics.WrapSink(relaySink, metricsClient, z.Name)
	deb := debouncer.New(countingSink, nil)

	therm := thermostat.New(deb, nil)
	monitor := gradient.New()

	return zonecontroller.New(z, therm, monitor, cachedWeather, schedClient, schedClient, schedClient, metricsClient)
}

// loadZoneInfo fetches zones/sensors from the control plane, falling
// back to the local cache on failure and persisting a successful fetch
// back to it (§7).
func loadZoneInfo(client *schedulerclient.Client, cache *localcache.Cache, cfg config.Config) ([]model.Zone, []model.Sensor) {
	ctx := context.Background()
	zones, zerr := client.FetchZones(ctx)
	sensors, serr := client.FetchSensors(ctx)
	if zerr == nil && serr == nil {
		if err := cache.Save(localcache.Payload{Zones: zones, Sensors: sensors}); err != nil {
			log.Warn().Err(err).Msg("failed to refresh local zone/sensor cache")
		}
		return zones, sensors
	}

	log.Warn().Err(zerr).Err(serr).Msg("control plane unreachable for zone/sensor info, trying local cache")
	payload, err := cache.Load()
	if err != nil {
		if len(cfg.Zones) > 0 {
			log.Warn().Msg("falling back to seed zones/sensors from configuration")
			return seedZonesFromConfig(cfg)
		}
		log.Fatal().Err(&localcache.ErrZoneInfoUnavailable{Cause: err}).Msg("no usable zone/sensor info at startup")
	}
	return payload.Zones, payload.Sensors
}

func seedZonesFromConfig(cfg config.Config) ([]model.Zone, []model.Sensor) {
	zones := make([]model.Zone, 0, len(cfg.Zones))
	for _, z := range cfg.Zones {
		zones = append(zones, model.Zone{ID: z.ZoneID, Name: z.Name, BoilerRelay: z.BoilerRelay, SensorID: z.SensorID})
	}
	sensors := make([]model.Sensor, 0, len(cfg.Sensors))
	for _, s := range cfg.Sensors {
		sensors = append(sensors, model.Sensor{ID: s.SensorID, Name: s.Name, Locator: s.Locator})
	}
	return zones, sensors
}

