// Package github implements scm.Client on the GitHub REST API using
// go-github over an oauth2 token transport.
//
// A project ID has the form "owner/repo" and the merge-request ID is the
// pull-request number. Summary comments are issue comments; inline
// comments are pull-request review comments on the RIGHT side of the head
// commit. DetectRepo reads the owner and repository from the local git
// remote.
package github
