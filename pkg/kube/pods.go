package kube

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/readiness"
	"github.com/chazu/litekube/pkg/wait"
)

// Pods manages pods
type Pods struct {
	*api
}

// podTarget is what a running-wait needs to know about a pod
type podTarget struct {
	name       string
	namespace  string
	uid        types.UID
	containers int
}

func targetFor(pod *corev1.Pod) podTarget {
	return podTarget{
		name:       pod.Name,
		namespace:  pod.Namespace,
		uid:        pod.UID,
		containers: len(pod.Spec.Containers),
	}
}

func validatePod(pod *corev1.Pod) error {
	if pod == nil || pod.Name == "" {
		return kubeerr.New(kubeerr.InvalidResourceBody, "pod body must have metadata.name")
	}
	if len(pod.Spec.Containers) == 0 {
		return kubeerr.Newf(kubeerr.InvalidResourceBody, "pod %s must have at least one container", pod.Name)
	}
	return nil
}

// Create creates pod and returns its name. With opts.Wait it blocks until
// every container has started and is running or completed.
func (p *Pods) Create(ctx context.Context, pod *corev1.Pod, opts WaitOptions) (string, error) {
	if err := validatePod(pod); err != nil {
		return "", err
	}
	pod.Namespace = p.namespace(pod.Namespace)

	if err := p.create(ctx, "pod", pod); err != nil {
		return "", err
	}
	log.FromContext(ctx).Info("Created pod", "pod", objectKey(pod.Namespace, pod.Name))

	if opts.Wait {
		if err := p.pollerFor(opts).Await(ctx, p.describeRunning(pod.Namespace, pod.Name), p.runningCondition(targetFor(pod))); err != nil {
			return pod.Name, err
		}
	}
	return pod.Name, nil
}

// WaitForContainersToRun blocks until every container of the pod has
// started and is running or completed
func (p *Pods) WaitForContainersToRun(ctx context.Context, namespace, name string, opts WaitOptions) error {
	pod, err := p.Get(ctx, namespace, name)
	if err != nil {
		return err
	}
	return p.pollerFor(opts).Await(ctx, p.describeRunning(pod.Namespace, pod.Name), p.runningCondition(targetFor(pod)))
}

// ContainersStarted scans the events of the pod with uid. It reports whether
// at least containers containers have started, and fails on the first event
// reporting an image pull or authentication failure.
func (p *Pods) ContainersStarted(ctx context.Context, namespace string, uid types.UID, containers int) (bool, error) {
	events, err := p.eventsFor(ctx, p.namespace(namespace), uid)
	if err != nil {
		return false, err
	}
	started, err := readiness.ScanEvents(events)
	if err != nil {
		return false, err
	}
	return started >= containers, nil
}

func (p *Pods) describeRunning(namespace, name string) string {
	return fmt.Sprintf("containers of pod %s to run", objectKey(namespace, name))
}

// runningCondition checks events first so that pull failures surface even
// while the pod status still reports waiting containers
func (p *Pods) runningCondition(target podTarget) wait.ConditionFunc {
	return func(ctx context.Context) (bool, error) {
		started, err := p.ContainersStarted(ctx, target.namespace, target.uid, target.containers)
		if err != nil || !started {
			return false, err
		}
		pod, err := p.Get(ctx, target.namespace, target.name)
		if err != nil {
			return false, err
		}
		return readiness.ContainersRunning(pod)
	}
}

// runningTask wraps runningCondition for a batch wait
func (p *Pods) runningTask(pod *corev1.Pod) wait.Task {
	return wait.Task{
		Description: p.describeRunning(pod.Namespace, pod.Name),
		Condition:   p.runningCondition(targetFor(pod)),
	}
}

// Delete deletes the pod. With opts.Wait it blocks until the pod is gone.
func (p *Pods) Delete(ctx context.Context, namespace, name string, opts WaitOptions) error {
	pod := &corev1.Pod{}
	pod.Name, pod.Namespace = name, p.namespace(namespace)

	uid, err := p.deleteCurrent(ctx, "pod", pod)
	if err != nil {
		return err
	}
	log.FromContext(ctx).Info("Deleted pod", "pod", objectKey(pod.Namespace, name), "uid", uid)

	if opts.Wait {
		task := p.deletedTask(pod.Namespace, name, uid)
		return p.pollerFor(opts).Await(ctx, task.Description, task.Condition)
	}
	return nil
}

// WaitForDeletion blocks until no pod of that name exists
func (p *Pods) WaitForDeletion(ctx context.Context, namespace, name string, opts WaitOptions) error {
	task := p.deletedTask(p.namespace(namespace), name, "")
	return p.pollerFor(opts).Await(ctx, task.Description, task.Condition)
}

func (p *Pods) deletedTask(namespace, name string, uid types.UID) wait.Task {
	return wait.Task{
		Description: fmt.Sprintf("pod %s to be deleted", objectKey(namespace, name)),
		Condition:   goneCondition(p.api, "pod", namespace, name, uid, &corev1.Pod{}),
	}
}

// Get returns the pod
func (p *Pods) Get(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	pod := &corev1.Pod{}
	if err := p.get(ctx, "pod", p.namespace(namespace), name, pod); err != nil {
		return nil, err
	}
	return pod, nil
}

// List returns the pods matching opts
func (p *Pods) List(ctx context.Context, opts ListOptions) ([]corev1.Pod, error) {
	var list corev1.PodList
	if err := p.list(ctx, "pods", &list, opts); err != nil {
		return nil, err
	}
	return filter(list.Items, opts.FieldSelector)
}

// ListNames returns the names of the pods matching opts
func (p *Pods) ListNames(ctx context.Context, opts ListOptions) ([]string, error) {
	pods, err := p.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return lo.Map(pods, func(pod corev1.Pod, _ int) string { return pod.Name }), nil
}

// IP returns the pod IP
func (p *Pods) IP(ctx context.Context, namespace, name string) (string, error) {
	pod, err := p.Get(ctx, namespace, name)
	if err != nil {
		return "", err
	}
	return pod.Status.PodIP, nil
}

// HostIP returns the IP of the node running the pod
func (p *Pods) HostIP(ctx context.Context, namespace, name string) (string, error) {
	pod, err := p.Get(ctx, namespace, name)
	if err != nil {
		return "", err
	}
	return pod.Status.HostIP, nil
}

// Phase returns the pod phase
func (p *Pods) Phase(ctx context.Context, namespace, name string) (corev1.PodPhase, error) {
	pod, err := p.Get(ctx, namespace, name)
	if err != nil {
		return "", err
	}
	return pod.Status.Phase, nil
}

// UID returns the pod UID
func (p *Pods) UID(ctx context.Context, namespace, name string) (types.UID, error) {
	pod, err := p.Get(ctx, namespace, name)
	if err != nil {
		return "", err
	}
	return pod.UID, nil
}

// FindByUID returns the pods with uid. An empty namespace searches every
// namespace.
func (p *Pods) FindByUID(ctx context.Context, namespace string, uid types.UID) ([]corev1.Pod, error) {
	return p.List(ctx, ListOptions{
		Namespace:     namespace,
		AllNamespaces: namespace == "",
		FieldSelector: "metadata.uid==" + string(uid),
	})
}

// Logs returns the logs of the pod. An empty container selects the only
// container of the pod.
func (p *Pods) Logs(ctx context.Context, namespace, name, container string) (string, error) {
	namespace = p.namespace(namespace)
	if p.clientset == nil {
		return "", kubeerr.New(kubeerr.Unknown, "reading logs requires a clientset")
	}

	req := p.clientset.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{Container: container})
	data, err := req.DoRaw(ctx)
	if err != nil {
		return "", kubeerr.Translate(fmt.Sprintf("get logs of pod %s", objectKey(namespace, name)), err)
	}
	log.FromContext(ctx).V(1).Info("Got pod logs", "pod", objectKey(namespace, name), "container", container)
	return string(data), nil
}

// Events returns the events of the pod
func (p *Pods) Events(ctx context.Context, namespace, name string) ([]corev1.Event, error) {
	pod, err := p.Get(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	return p.eventsFor(ctx, pod.Namespace, pod.UID)
}

// EventMessages returns the non-empty messages of the pod's events
func (p *Pods) EventMessages(ctx context.Context, namespace, name string) ([]string, error) {
	events, err := p.Events(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	return eventMessages(events), nil
}

// Patch applies patch to the pod
func (p *Pods) Patch(ctx context.Context, namespace, name string, patch []byte) error {
	pod := &corev1.Pod{}
	pod.Name, pod.Namespace = name, p.namespace(namespace)
	if err := p.patch(ctx, "pod", pod, mergePatch(patch)); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Patched pod", "pod", objectKey(pod.Namespace, name))
	return nil
}

// awaitRunning waits for every pod to run, concurrently when there are
// enough of them
func (p *Pods) awaitRunning(ctx context.Context, pods []corev1.Pod, opts WaitOptions) error {
	tasks := make([]wait.Task, len(pods))
	for i := range pods {
		tasks[i] = p.runningTask(&pods[i])
	}
	return p.pollerFor(opts).AwaitAll(ctx, tasks)
}

// awaitDeleted waits for every pod to be gone
func (p *Pods) awaitDeleted(ctx context.Context, pods []corev1.Pod, opts WaitOptions) error {
	tasks := make([]wait.Task, len(pods))
	for i := range pods {
		tasks[i] = p.deletedTask(pods[i].Namespace, pods[i].Name, pods[i].UID)
	}
	return p.pollerFor(opts).AwaitAll(ctx, tasks)
}
