package kube

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/readiness"
)

// Deployments manages deployments and waits on the pods they own
type Deployments struct {
	*api
	pods *Pods
}

func newDeployment() *appsv1.Deployment { return &appsv1.Deployment{} }

// ownedBy selects objects whose first owner reference is kind/name
func ownedBy(kind, name string) string {
	return fmt.Sprintf("metadata.ownerReferences[0].kind==%s,metadata.ownerReferences[0].name==%s", kind, name)
}

func validateTemplate(kind, name string, template corev1.PodTemplateSpec) error {
	if name == "" {
		return kubeerr.Newf(kubeerr.InvalidResourceBody, "%s body must have metadata.name", kind)
	}
	if len(template.Spec.Containers) == 0 {
		return kubeerr.Newf(kubeerr.InvalidResourceBody, "%s %s must have at least one container", kind, name)
	}
	return nil
}

// Create creates the deployment and returns its name. With opts.Wait it
// blocks until every replica is created and all of their pods run.
func (d *Deployments) Create(ctx context.Context, deployment *appsv1.Deployment, opts WaitOptions) (string, error) {
	if deployment == nil {
		return "", kubeerr.New(kubeerr.InvalidResourceBody, "deployment body must not be nil")
	}
	if err := validateTemplate("deployment", deployment.Name, deployment.Spec.Template); err != nil {
		return "", err
	}
	deployment.Namespace = d.namespace(deployment.Namespace)

	if err := d.create(ctx, "deployment", deployment); err != nil {
		return "", err
	}
	log.FromContext(ctx).Info("Created deployment", "deployment", objectKey(deployment.Namespace, deployment.Name))

	if opts.Wait {
		if err := d.WaitForRunning(ctx, deployment.Namespace, deployment.Name, opts); err != nil {
			return deployment.Name, err
		}
	}
	return deployment.Name, nil
}

// WaitForRunning blocks until the deployment has created all replicas and
// the containers of every pod run
func (d *Deployments) WaitForRunning(ctx context.Context, namespace, name string, opts WaitOptions) error {
	namespace = d.namespace(namespace)
	key := objectKey(namespace, name)

	err := d.pollerFor(opts).Await(ctx,
		fmt.Sprintf("replicas of deployment %s to be created", key),
		readyCondition(d.api, "deployment", namespace, name, newDeployment, readiness.ReplicasCreated))
	if err != nil {
		return err
	}

	pods, err := d.Pods(ctx, namespace, name)
	if err != nil {
		return err
	}
	if err := d.pods.awaitRunning(ctx, pods, opts); err != nil {
		return err
	}
	log.FromContext(ctx).V(1).Info("Deployment is running", "deployment", key, "pods", len(pods))
	return nil
}

// Delete deletes the deployment. With opts.Wait it blocks until every pod the
// deployment owned before the call is gone.
func (d *Deployments) Delete(ctx context.Context, namespace, name string, opts WaitOptions) error {
	namespace = d.namespace(namespace)
	pods, err := d.Pods(ctx, namespace, name)
	if err != nil {
		return err
	}

	deployment := newDeployment()
	deployment.Name, deployment.Namespace = name, namespace
	if err := d.delete(ctx, "deployment", deployment); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Deleted deployment", "deployment", objectKey(namespace, name))

	if opts.Wait {
		return d.pods.awaitDeleted(ctx, pods, opts)
	}
	return nil
}

// Patch applies patch to the deployment. With opts.Wait it blocks until the
// rollout finished: when the pod template changed the previous pods must be
// gone, then the deployment must be running again.
func (d *Deployments) Patch(ctx context.Context, namespace, name string, patch []byte, opts WaitOptions) error {
	namespace = d.namespace(namespace)
	before, err := d.Get(ctx, namespace, name)
	if err != nil {
		return err
	}
	oldPods, err := d.Pods(ctx, namespace, name)
	if err != nil {
		return err
	}

	after := before.DeepCopy()
	if err := d.patch(ctx, "deployment", after, mergePatch(patch)); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Patched deployment", "deployment", objectKey(namespace, name))

	if !opts.Wait {
		return nil
	}
	if readiness.TemplateHash(before.Spec.Template) != readiness.TemplateHash(after.Spec.Template) {
		if err := d.pods.awaitDeleted(ctx, oldPods, opts); err != nil {
			return err
		}
	}
	return d.WaitForRunning(ctx, namespace, name, opts)
}

// Scale sets the replica count. With opts.Wait a scale up blocks until the
// new pods run and a scale down blocks until only replicas pods remain.
func (d *Deployments) Scale(ctx context.Context, namespace, name string, replicas int32, opts WaitOptions) error {
	namespace = d.namespace(namespace)
	key := objectKey(namespace, name)
	oldPods, err := d.Pods(ctx, namespace, name)
	if err != nil {
		return err
	}

	patch := []byte(fmt.Sprintf(`{"spec":{"replicas":%d}}`, replicas))
	if err := d.Patch(ctx, namespace, name, patch, NoWait()); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Scaled deployment", "deployment", key, "replicas", replicas)

	if !opts.Wait {
		return nil
	}

	poller := d.pollerFor(opts)
	switch {
	case int(replicas) > len(oldPods):
		err := poller.Await(ctx,
			fmt.Sprintf("deployment %s to scale up to %d", key, replicas),
			readyCondition(d.api, "deployment", namespace, name, newDeployment, readiness.ReplicasCreated))
		if err != nil {
			return err
		}
		current, err := d.Pods(ctx, namespace, name)
		if err != nil {
			return err
		}
		known := lo.SliceToMap(oldPods, func(pod corev1.Pod) (types.UID, struct{}) { return pod.UID, struct{}{} })
		newPods := lo.Reject(current, func(pod corev1.Pod, _ int) bool {
			_, ok := known[pod.UID]
			return ok
		})
		return d.pods.awaitRunning(ctx, newPods, opts)

	case int(replicas) < len(oldPods):
		return poller.Await(ctx,
			fmt.Sprintf("deployment %s to scale down to %d", key, replicas),
			func(ctx context.Context) (bool, error) {
				pods, err := d.Pods(ctx, namespace, name)
				if err != nil {
					return false, err
				}
				return len(pods) == int(replicas), nil
			})
	}
	return nil
}

// ScaleDownUp scales the deployment to zero and back to its current replica
// count, replacing every pod
func (d *Deployments) ScaleDownUp(ctx context.Context, namespace, name string, opts WaitOptions) error {
	deployment, err := d.Get(ctx, namespace, name)
	if err != nil {
		return err
	}
	replicas := int32(1)
	if deployment.Spec.Replicas != nil {
		replicas = *deployment.Spec.Replicas
	}

	if err := d.Scale(ctx, namespace, name, 0, opts); err != nil {
		return err
	}
	return d.Scale(ctx, namespace, name, replicas, opts)
}

// Get returns the deployment
func (d *Deployments) Get(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	deployment := newDeployment()
	if err := d.get(ctx, "deployment", d.namespace(namespace), name, deployment); err != nil {
		return nil, err
	}
	return deployment, nil
}

// List returns the deployments matching opts
func (d *Deployments) List(ctx context.Context, opts ListOptions) ([]appsv1.Deployment, error) {
	var list appsv1.DeploymentList
	if err := d.list(ctx, "deployments", &list, opts); err != nil {
		return nil, err
	}
	return filter(list.Items, opts.FieldSelector)
}

// ListNames returns the names of the deployments matching opts
func (d *Deployments) ListNames(ctx context.Context, opts ListOptions) ([]string, error) {
	deployments, err := d.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return lo.Map(deployments, func(deployment appsv1.Deployment, _ int) string { return deployment.Name }), nil
}

// Pods returns the pods owned by the deployment's replica sets
func (d *Deployments) Pods(ctx context.Context, namespace, name string) ([]corev1.Pod, error) {
	namespace = d.namespace(namespace)

	var sets appsv1.ReplicaSetList
	if err := d.list(ctx, "replicasets", &sets, ListOptions{Namespace: namespace}); err != nil {
		return nil, err
	}
	owned, err := filter(sets.Items, ownedBy("Deployment", name))
	if err != nil {
		return nil, err
	}

	var pods []corev1.Pod
	for _, set := range owned {
		setPods, err := d.pods.List(ctx, ListOptions{Namespace: namespace, FieldSelector: ownedBy("ReplicaSet", set.Name)})
		if err != nil {
			return nil, err
		}
		pods = append(pods, setPods...)
	}
	return pods, nil
}

// Events returns the events of the deployment
func (d *Deployments) Events(ctx context.Context, namespace, name string) ([]corev1.Event, error) {
	deployment, err := d.Get(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	return d.eventsFor(ctx, deployment.Namespace, deployment.UID)
}

// EventMessages returns the non-empty messages of the deployment's events
func (d *Deployments) EventMessages(ctx context.Context, namespace, name string) ([]string, error) {
	events, err := d.Events(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	return eventMessages(events), nil
}
