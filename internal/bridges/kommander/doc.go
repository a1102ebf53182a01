// Package kommander drives a Kommander media server control surface over a
// websocket.
//
// The device speaks JSON envelopes tagged by a "KommanderMsg" field. This
// package keeps one connection open, authenticates on connect, encodes
// operator commands and turns device notifications into cached state,
// feedback updates and exported variables.
//
// # Architecture
//
//	┌──────────────┐  MQTT / REST  ┌──────────────────────────────┐  websocket
//	│  operators,  │◄─────────────►│ Bridge                       │◄──────────► Kommander
//	│  automation  │               │  Catalog  → Manager (reactor)│
//	└──────────────┘               │  Router   → StateCache       │
//	                               │           → Registry fan-out │
//	                               └──────────────────────────────┘
//
// # Key Responsibilities
//
//   - Manager: one reactor goroutine owning the transport, the single 5 second
//     reconnect timer and the connection status (disconnected, connecting,
//     connected, bad_config)
//   - Commands: constructors for every device command; Catalog maps named
//     actions with options onto them
//   - Router: classifies inbound messages, validates known bodies against
//     embedded JSON schemas, updates the StateCache and fans payloads out
//     to subscriptions
//   - Feedbacks: equality predicates over cached facets
//   - Bridge: reports status, variables, feedbacks and health to MQTT and
//     push clients, and runs actions received on MQTT
//
// # Subscriptions
//
// A Subscription copies part of every inbound message into a variable. The
// path uses dot and bracket syntax:
//
//	sub := kommander.Subscription{ID: "state", Path: "data.state", Variable: "play_state"}
//	err := manager.Subscribe(ctx, sub)
//
// An empty path exports the whole message as compact JSON text.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package kommander
