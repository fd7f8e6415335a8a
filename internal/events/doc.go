// Package events carries push notifications from the orchestration core to
// observers: tool provisioning status and per-job progress. Delivery is
// fire-and-forget; a slow subscriber loses events rather than stalling a job.
package events
