// Package webhooks exposes the WhatsApp Cloud API webhook endpoint.
//
// GET requests answer the subscription handshake. POST requests are checked
// against the app secret signature and handed to a Receiver, which enqueues
// them; the response never reflects handler outcomes.
package webhooks
