package models

import (
	"encoding/json"
	"time"
)

// MessageType is the "type" field of a websocket frame
type MessageType string

const (
	MessageWelcome                 MessageType = "welcome"
	MessagePing                    MessageType = "ping"
	MessagePong                    MessageType = "pong"
	MessageSubscribe               MessageType = "subscribe"
	MessageUnsubscribe             MessageType = "unsubscribe"
	MessageSubscriptionConfirmed   MessageType = "subscription_confirmed"
	MessageUnsubscriptionConfirmed MessageType = "unsubscription_confirmed"
	MessageRequestMetrics          MessageType = "request_metrics"
	MessageMetricsRequestReceived  MessageType = "metrics_request_received"
	MessageMetrics                 MessageType = "metrics"
	MessageAlert                   MessageType = "alert"
	MessageError                   MessageType = "error"
)

// ChannelAll matches every connection regardless of its subscriptions
const ChannelAll = "all"

// Envelope is an outbound frame
type Envelope struct {
	Type      MessageType `json:"type"`
	Data      any         `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientMessage is an inbound frame
type ClientMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type WelcomePayload struct {
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"clientId"`
}

type ChannelsPayload struct {
	Channels []string `json:"channels"`
}

type MetricsRequestPayload struct {
	RequestID any `json:"requestId"`
}

type MetricsRequestAck struct {
	RequestID any       `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// HubStats describes the live connection table
type HubStats struct {
	TotalClients          int            `json:"total_clients"`
	ClientsBySubscription map[string]int `json:"clients_by_subscription"`
	OldestConnection      *time.Time     `json:"oldest_connection"`
	NewestConnection      *time.Time     `json:"newest_connection"`
}
