package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/observability/metrics"
)

// client implements the Client interface on top of paho.
type client struct {
	config         Config
	internalClient paho.Client
	mu             sync.Mutex
	metrics        *metrics.MQTTMetrics
	log            logger.Logger
}

// NewClient creates a new MQTT client from settings. metrics may be nil.
func NewClient(settings *conf.Settings, m *metrics.MQTTMetrics) (Client, error) {
	if settings.MQTT.Broker == "" {
		return nil, errors.Newf("mqtt broker is not configured").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, err := url.Parse(settings.MQTT.Broker); err != nil {
		return nil, errors.New(err).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("broker", settings.MQTT.Broker).
			Build()
	}

	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.Main.Name
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.Topic = settings.MQTT.Topic
	cfg.Retain = settings.MQTT.Retain

	return &client{config: cfg, metrics: m, log: GetLogger()}, nil
}

// Connect resolves the broker host and then connects. Lost connections are
// re-established by paho's auto reconnect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return c.connectError(err)
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.connectError(fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internalClient = paho.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return c.connectError(fmt.Errorf("connection timeout"))
	}
	if err := token.Error(); err != nil {
		return c.connectError(err)
	}

	c.updateStatus(true)
	return nil
}

// Publish implements Client.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected() {
		return c.publishError(fmt.Errorf("not connected to MQTT broker"), topic)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, 0, c.config.Retain, payload)
	if !token.WaitTimeout(c.config.PublishTimeout) {
		return c.publishError(fmt.Errorf("publish timeout"), topic)
	}
	if err := token.Error(); err != nil {
		return c.publishError(err, topic)
	}

	if c.metrics != nil {
		c.metrics.RecordPublish(len(payload), time.Since(start))
	}
	c.log.Debug("published message", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected implements Client.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected()
}

func (c *client) isConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect implements Client.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout / time.Millisecond))
		c.updateStatus(false)
	}
}

func (c *client) onConnect(paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.updateStatus(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
	c.updateStatus(false)
	if c.metrics != nil {
		c.metrics.RecordFailure(metrics.StageConnectionLost)
	}
}

func (c *client) updateStatus(connected bool) {
	if c.metrics != nil {
		c.metrics.SetConnected(connected)
	}
}

func (c *client) connectError(err error) error {
	if c.metrics != nil {
		c.metrics.RecordFailure(metrics.StageConnect)
	}
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnect).
		Context("broker", c.config.Broker).
		Build()
}

func (c *client) publishError(err error, topic string) error {
	if c.metrics != nil {
		c.metrics.RecordFailure(metrics.StagePublish)
	}
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTPublish).
		Context("topic", topic).
		Build()
}
