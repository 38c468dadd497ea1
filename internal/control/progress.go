package control

import (
	"github.com/haasonsaas/nexus/internal/dag"
	"github.com/haasonsaas/nexus/internal/telemetry"
)

// progressCallback adapts an optional Mirror into a dag.OnProgress; nil
// mirror yields a no-op so the control surface can run without telemetry
// wired (e.g. in tests).
func progressCallback(mirror *telemetry.Mirror) dag.OnProgress {
	if mirror == nil {
		return func(dag.ProgressEvent) {}
	}
	return mirror.OnDAGProgress
}
