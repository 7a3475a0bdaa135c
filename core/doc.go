// Package core holds the normalized WhatsApp event model, the dedupe and job
// contracts, configuration and the shared error and observability helpers.
// It must not depend on the transport, storage or Graph client packages.
package core
