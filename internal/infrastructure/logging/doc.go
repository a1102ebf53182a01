// Package logging provides the structured logger shared by every bridge
// component.
//
// Logger embeds *slog.Logger, so call sites use the familiar slog methods.
// Every entry carries service=kommander and the build version. Components
// derive child loggers with Component, which adds a component attribute
// and shares the parent's level:
//
//	log := logging.New(cfg.Logging, version).With("instance_id", cfg.Instance.ID)
//	bridgeLog := log.Component("kommander")
//	bridgeLog.Info("connected", "url", url)
//
// The level can be raised at runtime with SetLevel. The bridge does this
// when device.debug_messages is enabled, so raw frames logged at debug
// level become visible without restarting.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Device frames are only logged at debug level.
package logging
