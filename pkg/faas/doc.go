// Package faas holds the pieces of Function/Workflow support that sit
// outside the API server's CRUD plumbing: building a code archive into a
// runnable image, and the pure scaling/selection decisions the API
// server's function housekeeping loop and invoke handler apply under its
// function lock (spec.md §4.1). It mirrors the "narrow interface, real
// simulation-backed reference impl" shape pkg/containerengine and
// pkg/network/proxy use for their own external collaborators.
package faas
