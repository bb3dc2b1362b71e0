// Package client is the HTTP+JSON client every non-API-server component
// (scheduler, node agent, controllers, covectl) uses to talk to the API
// server, per the route surface in spec.md §6. It wraps net/http with a
// per-kind list/get/create/update/delete method set, matching the naming
// convention pkg/store uses for the same entities so the two packages read
// as a matched pair from opposite sides of the API.
package client
