package readiness

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	corev1 "k8s.io/api/core/v1"
)

// TemplateHash returns a digest of a pod template. Two templates with the
// same hash roll out the same pods, so a patch that leaves the hash unchanged
// does not replace any pod.
func TemplateHash(template corev1.PodTemplateSpec) string {
	data, err := json.Marshal(template)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", xxhash.Sum64(data))
}
