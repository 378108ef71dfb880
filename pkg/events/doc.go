// Package events provides an in-memory broker for broadcasting task
// lifecycle and registry mutation events to interested subscribers.
// Within nornsd only pkg/task publishes (task lifecycle events, through
// its EventSink), and no package subscribes. Publish is
// non-blocking; a slow or absent subscriber never stalls the
// publisher, and a full subscriber buffer drops the event rather than
// applying backpressure.
//
// Broker implements pkg/task.EventSink directly, so a task.Manager can
// be configured with a Broker as its event sink with no adapter.
package events
