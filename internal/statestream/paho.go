package statestream

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/joshp123/gohome-tfiac/internal/config"
)

const (
	qos            = 1
	publishTimeout = 5 * time.Second
)

// PahoBroker is a Broker backed by the Eclipse Paho client.
type PahoBroker struct {
	client mqtt.Client
	prefix string

	mu   sync.Mutex
	subs map[string]mqtt.MessageHandler
}

var _ Broker = (*PahoBroker)(nil)

// Dial connects to the broker in cfg. The connection retries in the
// background; every (re)connect marks the host online and replays the
// subscriptions.
func Dial(cfg *config.MQTTConfig) (*PahoBroker, error) {
	b := &PahoBroker{prefix: cfg.TopicPrefix, subs: make(map[string]mqtt.MessageHandler)}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID("gohome-" + randomSuffix())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.PasswordFile != "" {
		data, err := os.ReadFile(cfg.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("read mqtt password: %w", err)
		}
		opts.SetPassword(strings.TrimSpace(string(data)))
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	// Command handlers block on device I/O.
	opts.SetOrderMatters(false)
	opts.SetWill(cfg.TopicPrefix+"/status", "offline", qos, true)
	opts.SetOnConnectHandler(b.onConnect)

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return b, nil
}

// onConnect runs on paho's connection goroutine, so it does not wait on
// tokens.
func (b *PahoBroker) onConnect(client mqtt.Client) {
	client.Publish(b.prefix+"/status", qos, true, []byte("online"))

	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, handler := range b.subs {
		client.Subscribe(topic, qos, handler)
	}
}

func (b *PahoBroker) Publish(topic string, retained bool, payload []byte) error {
	token := b.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	return token.Error()
}

func (b *PahoBroker) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	h := func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	}
	b.mu.Lock()
	b.subs[topic] = h
	b.mu.Unlock()

	token := b.client.Subscribe(topic, qos, h)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// Close marks the host offline and disconnects.
func (b *PahoBroker) Close() {
	_ = b.Publish(b.prefix+"/status", true, []byte("offline"))
	b.client.Disconnect(250)
}

func randomSuffix() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
