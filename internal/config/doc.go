// Package config handles sharedstate.json and SHAREDSTATE_* environment
// configuration for the sharedstate binary.
//
// # Configuration File
//
// The optional sharedstate.json file:
//
//	{
//	    "addr": "localhost:7070",
//	    "logLevel": "debug",
//	    "logFormat": "json",
//	    "metricsNamespace": "sharedstate",
//	    "eventFormat": "msgpack",
//	    "tick": "500ms"
//	}
//
// # Environment
//
// Each field can be overridden by an environment variable, which wins over
// the file:
//
//	SHAREDSTATE_ADDR
//	SHAREDSTATE_LOG_LEVEL
//	SHAREDSTATE_LOG_FORMAT
//	SHAREDSTATE_METRICS_NAMESPACE
//	SHAREDSTATE_EVENT_FORMAT
//	SHAREDSTATE_TICK
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    return err
//	}
//	logger := cfg.Logger(os.Stderr)
package config
