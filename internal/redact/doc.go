// Package redact scrubs secrets from code snippets before they are echoed
// into merge-request comments or reports.
//
// Detection uses regex heuristics for common secret shapes: API keys, AWS
// credentials, bearer tokens, JWTs, private key headers, connection strings
// with passwords, and GitHub, GitLab and Slack tokens.
package redact
