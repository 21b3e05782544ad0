// Package ws pushes the active team selection to browser clients over
// WebSocket so that open views follow a switch made from another tab.
//
// Message format:
//
//	{
//	  "event": "teams",
//	  "data":  {"teams": ["coding", "ui"], "raw": "coding,ui"}
//	}
//
// A message is sent on connect, after every successful store.Set, and every
// push interval as a keep-alive. The endpoint is mounted at /ws/teams.
package ws
