package deploy

import (
	"fmt"
	"time"

	"github.com/slipway-sh/slipway/internal/runtime"
)

// TrafficState tracks which release the proxy routes to. At most one
// release per environment is ever Live.
type TrafficState string

const (
	TrafficStandby  TrafficState = "standby"
	TrafficLive     TrafficState = "live"
	TrafficDraining TrafficState = "draining"
	TrafficRemoved  TrafficState = "removed"
)

// Release is one container-mode deployable unit. The assigned port is
// unknown until the workload host allocates one; health is observed by
// polling, never set directly.
type Release struct {
	ID          string
	ContainerID string
	Port        int
	Health      runtime.HealthState
	Traffic     TrafficState
}

// newReleaseID builds the unique per-deploy identifier. The timestamp keeps
// retried deploys from colliding with the remains of earlier attempts.
func newReleaseID(product, environment string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", product, environment, now.UTC().Format("20060102150405"))
}

// Manifest is the deployment metadata written next to the active proxy
// documents after a successful switch. It is discovery state, not control
// state: a run never depends on it beyond logging what changed.
type Manifest struct {
	ReleaseID  string    `json:"release_id"`
	Mode       string    `json:"mode"`
	Image      string    `json:"image,omitempty"`
	Backend    string    `json:"backend"`
	Domain     string    `json:"domain"`
	RunID      string    `json:"run_id"`
	DeployedAt time.Time `json:"deployed_at"`
}
