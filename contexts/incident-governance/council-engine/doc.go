// Package councilengine implements the council engine inside the
// incident-governance context.
//
// The module owns council session lifecycle (open, vote, finalize, human
// completion), threshold-based consensus classification over a fixed-size
// agent council, tally and metrics reads, and outbox-backed event production
// for downstream alerting. Tally and classification are pure domain services;
// persistence, notification and the event bus sit behind ports.
package councilengine
