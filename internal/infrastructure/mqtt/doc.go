// Package mqtt connects the Kommander bridge to an MQTT broker.
//
// The bridge publishes its connection status, exported variables, feedback
// states and health under kommander/{instance}/..., and accepts action
// commands on kommander/{instance}/action/{actionID}. See Topics for the
// full hierarchy.
//
// Presence:
//
// On connect the client publishes a retained "online" presence message. A
// clean Close replaces it with "offline" (reason graceful_shutdown); if the
// process dies the broker publishes the Last Will with reason
// unexpected_disconnect.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Instance.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	err = client.PublishRetained(client.Topics().Status(), payload)
package mqtt
