package readiness

import (
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/chazu/litekube/pkg/kubeerr"
)

// Markers looked for in event messages and container states
const (
	MarkerUnauthorized     = "unauthorized"
	MarkerPullDenied       = "pull access denied"
	MarkerPullFailed       = "Failed to pull"
	MarkerContainerStarted = "Started container"
	MarkerCompleted        = "Completed"
	MarkerError            = "Error"
)

// ScanEvents walks the events of a pod in order. It fails with
// AuthenticationDenied or ImagePullFailed on the first event that reports
// such a failure, and otherwise returns the number of containers reported
// as started.
func ScanEvents(events []corev1.Event) (int, error) {
	started := 0
	for _, event := range events {
		switch {
		case strings.Contains(event.Message, MarkerUnauthorized):
			return started, kubeerr.New(kubeerr.AuthenticationDenied, event.Message)
		case strings.Contains(event.Message, MarkerPullDenied),
			strings.Contains(event.Message, MarkerPullFailed):
			return started, kubeerr.New(kubeerr.ImagePullFailed, event.Message)
		case strings.Contains(event.Message, MarkerContainerStarted):
			started++
		}
	}
	return started, nil
}

// ContainersRunning reports whether every container of pod is running or
// has completed. A container counts when its current state, or failing that
// its last state, is running or carries the Completed marker. A state whose
// reason or message carries the Error marker fails with RuntimeFailure.
func ContainersRunning(pod *corev1.Pod) (bool, error) {
	if pod == nil || len(pod.Status.ContainerStatuses) == 0 {
		return false, nil
	}

	for _, status := range pod.Status.ContainerStatuses {
		if !hasState(status.State) {
			return false, nil
		}
	}

	for _, status := range pod.Status.ContainerStatuses {
		counted, err := stateCounts(status.State)
		if err != nil {
			return false, err
		}
		if !counted {
			counted, err = stateCounts(status.LastTerminationState)
			if err != nil {
				return false, err
			}
		}
		if !counted {
			return false, nil
		}
	}
	return true, nil
}

func hasState(state corev1.ContainerState) bool {
	return state.Running != nil || state.Waiting != nil || state.Terminated != nil
}

// stateCounts applies the container state machine to a single state
func stateCounts(state corev1.ContainerState) (bool, error) {
	var reason, message string
	switch {
	case state.Running != nil:
		return true, nil
	case state.Waiting != nil:
		reason, message = state.Waiting.Reason, state.Waiting.Message
	case state.Terminated != nil:
		reason, message = state.Terminated.Reason, state.Terminated.Message
	default:
		return false, nil
	}

	if strings.Contains(message, MarkerError) || strings.Contains(reason, MarkerError) {
		detail := message
		if detail == "" {
			detail = reason
		}
		return false, kubeerr.New(kubeerr.RuntimeFailure, detail)
	}
	return strings.Contains(message, MarkerCompleted) || strings.Contains(reason, MarkerCompleted), nil
}
