package volume

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nodeforge/cove/pkg/log"
)

// MountBackend is the narrow interface the NFS driver drives its mount
// operations through — the same "subprocess call behind a swappable
// interface" idiom as the service proxy's NATBackend, since both exist
// because the host OS running this node agent may not support the real
// operation (no iptables, no mount.nfs).
type MountBackend interface {
	// Mount mounts server:path at target. Idempotent: mounting an
	// already-mounted target is not an error.
	Mount(server, path, target string) error
	// Unmount unmounts target. Idempotent: unmounting a target that
	// isn't mounted is not an error.
	Unmount(target string) error
}

// OSMountBackend shells out to the real mount/umount binaries.
type OSMountBackend struct{}

func (OSMountBackend) Mount(server, path, target string) error {
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("create mount point %s: %w", target, err)
	}
	source := server + ":" + path
	out, err := exec.Command("mount", "-t", "nfs", source, target).CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "already mounted") {
			return nil
		}
		return fmt.Errorf("mount %s at %s: %w (output: %s)", source, target, err, string(out))
	}
	return nil
}

func (OSMountBackend) Unmount(target string) error {
	out, err := exec.Command("umount", target).CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "not mounted") {
			return nil
		}
		return fmt.Errorf("umount %s: %w (output: %s)", target, err, string(out))
	}
	return nil
}

// SimulationMountBackend never calls mount(8); it drops a labeled
// marker file at the mount point instead, so pods can still be
// scheduled and their volume paths resolved on hosts without native NFS
// client support (spec.md §4.6 "administrative-channel mirror").
type SimulationMountBackend struct{}

const simulationMarker = ".cove-simulated-nfs-mount"

func (SimulationMountBackend) Mount(server, path, target string) error {
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("create mount point %s: %w", target, err)
	}
	marker := filepath.Join(target, simulationMarker)
	content := fmt.Sprintf("server=%s\npath=%s\n", server, path)
	if err := os.WriteFile(marker, []byte(content), 0644); err != nil {
		return fmt.Errorf("write simulated mount marker: %w", err)
	}
	log.WithComponent("volume-sim").Debug().Str("server", server).Str("path", path).Str("target", target).
		Msg("simulated nfs mount")
	return nil
}

func (SimulationMountBackend) Unmount(target string) error {
	if err := os.Remove(filepath.Join(target, simulationMarker)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove simulated mount marker: %w", err)
	}
	log.WithComponent("volume-sim").Debug().Str("target", target).Msg("simulated nfs unmount")
	return nil
}
