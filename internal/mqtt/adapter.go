// Package mqtt is the message-bus transport adapter: it subscribes
// sensor and boiler-relay-info topics and publishes debounced boiler
// demand-request commands, translating wire JSON into the core's plain
// Go callback contracts. Grounded on the original Python's paho-mqtt
// usage (boilerio/scheduler.py, boilerio/monitor.py) and implemented
// against github.com/eclipse/paho.mqtt.golang, the library the pack's
// other MQTT-based examples use.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

// Client is the narrow surface the adapter needs from a broker
// connection, letting tests substitute a fake.
type Client interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

// PahoClient adapts paho.mqtt.golang's Client to the narrow Client
// interface above.
type PahoClient struct {
	inner mqttlib.Client
}

// NewPahoClient connects to an MQTT broker using the given options and
// returns a ready Client.
func NewPahoClient(opts *mqttlib.ClientOptions) (*PahoClient, error) {
	c := mqttlib.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &PahoClient{inner: c}, nil
}

// Publish implements Client.
func (p *PahoClient) Publish(topic string, payload []byte) error {
	token := p.inner.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

// Subscribe implements Client.
func (p *PahoClient) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := p.inner.Subscribe(topic, 0, func(_ mqttlib.Client, msg mqttlib.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

// SensorCallback folds a parsed sensor reading into a zone controller.
// Exceptions/parse failures must not prevent other callbacks from
// firing (§7); the adapter logs and ignores malformed payloads.
type SensorCallback func(reading model.TempReading)

// BoilerEdgeCallback folds a boiler on/off edge into the gradient
// monitor.
type BoilerEdgeCallback func(on bool)

// Adapter wires MQTT topics to the core's callback contracts.
type Adapter struct {
	client Client

	demandTopicPrefix string
	infoBaseTopic     string

	onSensor         map[string]SensorCallback
	onScheduleChange func()
	onBoilerEdge     map[string]BoilerEdgeCallback
}

// New builds an Adapter over client.
func New(client Client, demandTopicPrefix, infoBaseTopic string) *Adapter {
	return &Adapter{
		client:            client,
		demandTopicPrefix: demandTopicPrefix,
		infoBaseTopic:     infoBaseTopic,
		onSensor:          map[string]SensorCallback{},
		onBoilerEdge:      map[string]BoilerEdgeCallback{},
	}
}

// SubscribeSensor subscribes `sensor.<locator>` and routes parsed
// readings to cb.
func (a *Adapter) SubscribeSensor(locator string, cb SensorCallback) error {
	topic := "sensor." + locator
	a.onSensor[topic] = cb
	return a.client.Subscribe(topic, a.handleSensor)
}

// SubscribeScheduleChange subscribes `thermostat.schedule_changed` and
// `thermostat.status`, invoking cb to trigger a policy refresh.
func (a *Adapter) SubscribeScheduleChange(cb func()) error {
	a.onScheduleChange = cb
	if err := a.client.Subscribe("thermostat.schedule_changed", a.handleScheduleChanged); err != nil {
		return err
	}
	return a.client.Subscribe("thermostat.status", a.handleStatus)
}

// SubscribeBoilerInfo subscribes `heating.info/<relay>` and routes
// parsed on/off edges to cb.
func (a *Adapter) SubscribeBoilerInfo(relay string, cb BoilerEdgeCallback) error {
	topic := a.infoBaseTopic + "/" + relay
	a.onBoilerEdge[topic] = cb
	return a.client.Subscribe(topic, a.handleBoilerInfo)
}

// PublishDemand publishes `heating.demand_request` for a relay. This is
// the debouncer's underlying Sink.
func (a *Adapter) PublishDemand(relay string, cmd model.BoilerCommand) error {
	payload, err := json.Marshal(map[string]string{"thermostat": relay, "command": string(cmd)})
	if err != nil {
		return fmt.Errorf("failed to marshal demand request: %w", err)
	}
	return a.client.Publish("heating.demand_request", payload)
}

// RelaySink adapts PublishDemand to debouncer.Sink for a single relay.
type RelaySink struct {
	adapter *Adapter
	relay   string
}

// NewRelaySink builds a debouncer.Sink bound to one relay.
func (a *Adapter) NewRelaySink(relay string) RelaySink {
	return RelaySink{adapter: a, relay: relay}
}

// Publish implements debouncer.Sink.
func (s RelaySink) Publish(cmd model.BoilerCommand) error {
	return s.adapter.PublishDemand(s.relay, cmd)
}

func (a *Adapter) handleSensor(topic string, payload []byte) {
	defer a.recoverAndLog(topic)

	cb, ok := a.onSensor[topic]
	if !ok {
		return
	}
	var data struct {
		Temperature *float64 `json:"temperature"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("malformed sensor payload, ignoring")
		return
	}
	if data.Temperature == nil {
		log.Warn().Str("topic", topic).Msg("sensor payload missing temperature, ignoring")
		return
	}
	cb(model.TempReading{Temp: *data.Temperature})
}

func (a *Adapter) handleScheduleChanged(topic string, _ []byte) {
	defer a.recoverAndLog(topic)
	if a.onScheduleChange != nil {
		a.onScheduleChange()
	}
}

func (a *Adapter) handleStatus(topic string, payload []byte) {
	defer a.recoverAndLog(topic)

	var data struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("malformed status payload, ignoring")
		return
	}
	if data.Status == "online" && a.onScheduleChange != nil {
		a.onScheduleChange()
	}
}

func (a *Adapter) handleBoilerInfo(topic string, payload []byte) {
	defer a.recoverAndLog(topic)

	cb, ok := a.onBoilerEdge[topic]
	if !ok {
		return
	}
	var data struct {
		Cmd string `json:"cmd"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("malformed boiler info payload, ignoring")
		return
	}
	switch strings.ToUpper(data.Cmd) {
	case "ON":
		cb(true)
	case "OFF":
		cb(false)
	}
}

// recoverAndLog ensures a panicking callback cannot take down the
// adapter's other subscriptions (§7: "a sensor callback exception must
// not prevent subsequent callbacks from firing").
func (a *Adapter) recoverAndLog(topic string) {
	if r := recover(); r != nil {
		log.Error().Interface("panic", r).Str("topic", topic).Msg("recovered from callback panic")
	}
}
