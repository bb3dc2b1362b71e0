/*
Package containerengine is the seam between the node agent and whatever
actually runs containers. Cove defines the Engine interface and its OCI
specs-go-shaped request type, and ships a Simulation implementation for
development; a production deployment supplies a real Engine (containerd,
or otherwise) satisfying the same interface.
*/
package containerengine
