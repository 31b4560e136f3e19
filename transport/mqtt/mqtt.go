// Package mqtt provides an MQTT transport for remote terminals.
//
// Frames are published as base64-encoded strings on the topic
// "{prefix}/{room}". Shell and terminals share the topic, so every publish is
// echoed back to its sender; the shell drops echoes by sender key and the
// frame deduplicator.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kabili207/prisma-go/core/codec"
	"github.com/kabili207/prisma-go/transport"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

const (
	// DefaultTopicPrefix is the default MQTT topic prefix.
	DefaultTopicPrefix = "prisma"
)

// Config holds the configuration for an MQTT transport.
type Config struct {
	// Broker is the MQTT broker URL (e.g., "tcp://broker.example.com:1883").
	Broker string
	// Username for MQTT authentication. Leave empty if not required.
	Username string
	// Password for MQTT authentication. Leave empty if not required.
	Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, a random one is generated.
	ClientID string
	// TopicPrefix is the MQTT topic prefix (default: "prisma").
	TopicPrefix string
	// Room names the shared topic. The transport subscribes and publishes to
	// "{TopicPrefix}/{Room}".
	Room string
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Transport implements transport.Transport over MQTT.
type Transport struct {
	cfg          Config
	client       paho.Client
	log          *slog.Logger
	mu           sync.RWMutex
	connected    bool
	frameHandler transport.FrameHandler
	stateHandler transport.StateHandler
}

// New creates a new MQTT transport with the given configuration.
func New(cfg Config) *Transport {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Transport{
		cfg: cfg,
		log: cfg.Logger.WithGroup("mqtt"),
	}
}

// Start connects to the MQTT broker and begins listening for frames.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.Broker == "" {
		return errors.New("broker URL is required")
	}
	if t.cfg.Room == "" {
		return errors.New("room is required")
	}

	clientID := t.cfg.ClientID
	if clientID == "" {
		clientID = "prisma-" + uuid.NewString()
	}

	opts := paho.NewClientOptions().
		AddBroker(t.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetOnConnectHandler(t.onConnected).
		SetConnectionLostHandler(t.onConnectionLost).
		SetReconnectingHandler(t.onReconnecting)

	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
	}
	if t.cfg.Password != "" {
		opts.SetPassword(t.cfg.Password)
	}
	if t.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	client := paho.NewClient(opts)
	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(30 * time.Second):
		return errors.New("connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}

	return nil
}

// Stop gracefully disconnects from the MQTT broker.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		t.client.Disconnect(1000)
		t.connected = false
	}
	return nil
}

// IsConnected returns true if the transport is connected to the broker.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected && t.client != nil && t.client.IsConnected()
}

// SetFrameHandler sets the callback for incoming frames.
func (t *Transport) SetFrameHandler(fn transport.FrameHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frameHandler = fn
}

// SetStateHandler sets the callback for transport state changes.
func (t *Transport) SetStateHandler(fn transport.StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateHandler = fn
}

// SendFrame encodes a frame and publishes it to the room topic.
func (t *Transport) SendFrame(frame *codec.Frame) error {
	if !t.IsConnected() {
		return errors.New("not connected")
	}

	payload, err := encodeFrame(frame)
	if err != nil {
		return err
	}

	token := t.client.Publish(t.topic(), 0, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("timeout publishing to MQTT")
	}
	return token.Error()
}

func (t *Transport) topic() string {
	return t.cfg.TopicPrefix + "/" + t.cfg.Room
}

func (t *Transport) subscribe() {
	topic := t.topic()
	t.client.Subscribe(topic, 0, t.handleMessage)
	t.log.Debug("subscribed to room topic", "topic", topic)
}

func (t *Transport) handleMessage(_ paho.Client, message paho.Message) {
	t.dispatch(message.Payload())
}

// dispatch decodes one message payload and hands the frame to the handler.
func (t *Transport) dispatch(payload []byte) {
	t.mu.RLock()
	handler := t.frameHandler
	t.mu.RUnlock()

	if handler == nil {
		return
	}

	frame, err := decodeFrame(payload)
	if err != nil {
		t.log.Debug("dropping undecodable message", "error", err)
		return
	}
	handler(frame, transport.FrameSourceMQTT)
}

func (t *Transport) onConnected(_ paho.Client) {
	t.mu.Lock()
	t.connected = true
	handler := t.stateHandler
	t.mu.Unlock()

	t.subscribe()
	t.log.Info("connected to MQTT broker", "broker", t.cfg.Broker)

	if handler != nil {
		handler(t, transport.EventConnected)
	}
}

func (t *Transport) onConnectionLost(_ paho.Client, err error) {
	t.mu.Lock()
	t.connected = false
	handler := t.stateHandler
	t.mu.Unlock()

	t.log.Error("MQTT connection lost", "error", err)

	if handler != nil {
		handler(t, transport.EventDisconnected)
	}
}

func (t *Transport) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	t.mu.RLock()
	handler := t.stateHandler
	t.mu.RUnlock()

	t.log.Info("reconnecting to MQTT broker")

	if handler != nil {
		handler(t, transport.EventReconnecting)
	}
}

func encodeFrame(frame *codec.Frame) (string, error) {
	data, err := frame.WriteTo()
	if err != nil {
		return "", fmt.Errorf("encoding frame: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decodeFrame(payload []byte) (*codec.Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(string(payload))
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}
	var frame codec.Frame
	if err := frame.ReadFrom(raw); err != nil {
		return nil, fmt.Errorf("parsing frame: %w", err)
	}
	return &frame, nil
}
