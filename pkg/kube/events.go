package kube

import (
	"context"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
)

// eventsFor returns the events whose involved object has uid. An empty
// namespace searches every namespace.
func (a *api) eventsFor(ctx context.Context, namespace string, uid types.UID) ([]corev1.Event, error) {
	var list corev1.EventList
	opts := ListOptions{Namespace: namespace, AllNamespaces: namespace == ""}
	if err := a.list(ctx, "events", &list, opts); err != nil {
		return nil, err
	}
	return filter(list.Items, "involvedObject.uid=="+string(uid))
}

// eventMessages returns the non-empty messages of events, in order
func eventMessages(events []corev1.Event) []string {
	return lo.FilterMap(events, func(event corev1.Event, _ int) (string, bool) {
		return event.Message, event.Message != ""
	})
}
