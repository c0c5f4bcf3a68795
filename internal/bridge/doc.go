// Package bridge connects field devices to the monitoring core. It owns the
// MQTT sessions to the local and cloud brokers, the cloud API client and its
// token, the status poller, and the single dispatcher that turns broker
// callbacks into SubmitReading calls and command republishes.
//
// Broker callbacks never do work themselves; they enqueue typed events on a
// bounded channel that the Dispatcher consumes.
package bridge
