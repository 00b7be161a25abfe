// Package mqtt provides the broker connection and the command transport
// used to reach device adapters.
//
// # Architecture
//
//	┌────────────┐   dispatch/command/{id}   ┌──────────────┐
//	│ Transport  │ ─────────────────────────▶│ device       │
//	│ (Send)     │ ◀─────────────────────────│ adapter      │
//	└────────────┘   dispatch/ack/{id}       └──────────────┘
//
// Client wraps paho.mqtt.golang with automatic reconnection, subscription
// restoration, and a retained system status topic with Last Will and
// Testament so dashboards can distinguish a crash from a clean shutdown.
//
// Transport publishes one command message per Send and correlates the
// adapter's acknowledgment by request ID over a single wildcard
// subscription. Broker failures and missing acks surface as transient
// errors; adapter rejections are permanent.
package mqtt
