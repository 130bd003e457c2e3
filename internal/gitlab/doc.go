// Package gitlab implements scm.Client on the GitLab REST API v4 using
// gitlab.com/gitlab-org/api/client-go.
//
// The project ID may be numeric or a URL-encodable namespace path. Every
// non-2xx response is returned as *scm.RemoteError carrying the HTTP status.
// The client never retries.
package gitlab
