package mqtt

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/sites"
)

// ChangeEventDTO is the JSON payload published for one change event.
type ChangeEventDTO struct {
	Site         string  `json:"site"`
	Date         string  `json:"date"`
	Metric       string  `json:"metric"`
	PreviousDate string  `json:"previousDate"`
	Previous     int     `json:"previous"`
	Current      int     `json:"current"`
	PctChange    float64 `json:"pctChange"`
	Direction    string  `json:"direction"`
	Magnitude    string  `json:"magnitude"`
}

// NewChangeEventDTO converts a stored event.
func NewChangeEventDTO(e *datastore.ChangeEvent) ChangeEventDTO {
	return ChangeEventDTO{
		Site:         e.SiteName,
		Date:         e.Date,
		Metric:       string(e.Metric),
		PreviousDate: e.PreviousDate,
		Previous:     e.Previous,
		Current:      e.Current,
		PctChange:    e.PctChange,
		Direction:    e.Direction,
		Magnitude:    string(e.Magnitude),
	}
}

// Publisher fans change events out to <topic>/<site>/<metric>.
type Publisher struct {
	client Client
	topic  string
	log    logger.Logger
}

// NewPublisher creates a publisher on client under the base topic.
func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: strings.TrimSuffix(topic, "/"), log: GetLogger()}
}

// Topic returns the topic an event is published to.
func (p *Publisher) Topic(e *datastore.ChangeEvent) string {
	slug := strings.ReplaceAll(sites.Fold(e.SiteName), " ", "_")
	return p.topic + "/" + slug + "/" + string(e.Metric)
}

// PublishEvents publishes every event, connecting first when needed. It
// stops at the first failure and reports how many were delivered.
func (p *Publisher) PublishEvents(ctx context.Context, events []datastore.ChangeEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if !p.client.IsConnected() {
		if err := p.client.Connect(ctx); err != nil {
			return 0, err
		}
	}

	for i := range events {
		payload, err := json.Marshal(NewChangeEventDTO(&events[i]))
		if err != nil {
			return i, errors.New(err).
				Component("mqtt").
				Category(errors.CategoryMQTTPublish).
				Build()
		}
		if err := p.client.Publish(ctx, p.Topic(&events[i]), payload); err != nil {
			return i, err
		}
	}

	p.log.Info("change events published",
		logger.Int("events", len(events)),
		logger.String("topic", p.topic))
	return len(events), nil
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	p.client.Disconnect()
}
