// Package webhook exposes the HTTP endpoints that receive merge-request
// events from GitLab and GitHub and hand them to an EventSink.
package webhook
