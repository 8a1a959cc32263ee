package app

import (
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/config"
	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/mcl"
)

// PoseMessage is the JSON published on the pose topic.
type PoseMessage struct {
	geometry.Pose
	Particles int       `json:"particles"`
	Time      time.Time `json:"time"`
}

// tokenPublisher is the part of mqtt.Client the mirror uses.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTMirror publishes every estimate to an MQTT topic as a retained
// message, so late subscribers see the current pose. Messages go out from
// the mirror's own goroutine; only the latest unsent one is kept.
type MQTTMirror struct {
	client  tokenPublisher
	topic   string
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger

	slot chan []byte
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewMQTTMirror starts publishing on topic through client.
func NewMQTTMirror(client tokenPublisher, topic string, logger *zap.Logger) *MQTTMirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MQTTMirror{
		client:  client,
		topic:   topic,
		timeout: 2 * time.Second,
		now:     time.Now,
		logger:  logger,
		slot:    make(chan []byte, 1),
		done:    make(chan struct{}),
	}
	m.wg.Add(1)
	go m.loop()
	return m
}

// ConnectMQTT connects to the configured broker with clientID.
func ConnectMQTT(cfg *config.Config, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "mqtt: connect %s", cfg.MQTTBroker)
	}
	return client, nil
}

// Publish implements localization.Publisher. Snapshots without an estimate
// are skipped. It never waits for the broker.
func (m *MQTTMirror) Publish(snap mcl.Snapshot) {
	if snap.Estimate == nil {
		return
	}
	payload, err := json.Marshal(PoseMessage{
		Pose:      *snap.Estimate,
		Particles: len(snap.Particles),
		Time:      m.now().UTC(),
	})
	if err != nil {
		m.logger.Warn("pose marshal error", zap.Error(err))
		return
	}

	for {
		select {
		case <-m.done:
			return
		case m.slot <- payload:
			return
		default:
		}
		select {
		case <-m.slot:
		default:
		}
	}
}

func (m *MQTTMirror) loop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case payload := <-m.slot:
			m.send(payload)
		}
	}
}

func (m *MQTTMirror) send(payload []byte) {
	token := m.client.Publish(m.topic, 0, true, payload)
	if !token.WaitTimeout(m.timeout) {
		m.logger.Warn("pose publish timed out", zap.String("topic", m.topic))
		return
	}
	if err := token.Error(); err != nil {
		m.logger.Warn("pose publish error", zap.String("topic", m.topic), zap.Error(err))
	}
}

// Close stops the publishing goroutine, waiting for an in-flight publish to
// finish or time out. A pending message is dropped.
func (m *MQTTMirror) Close() {
	m.once.Do(func() { close(m.done) })
	m.wg.Wait()
}
