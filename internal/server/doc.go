// Package server implements the service's network surfaces: the UDP capture
// ingress that feeds raw audio datagrams into the pipeline, the HTTP API for
// monitoring, and the websocket feed that streams live captions to clients.
package server
