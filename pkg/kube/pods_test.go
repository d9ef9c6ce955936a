package kube

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/chazu/litekube/pkg/kubeerr"
)

var _ = Describe("Pods", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	newPod := func(name string, containerNames ...string) *corev1.Pod {
		return &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: name},
			Spec:       corev1.PodSpec{Containers: containers(containerNames...)},
			Status:     runningStatus(containerNames...),
		}
	}

	Context("When creating a pod", func() {
		It("Should reject a body without containers", func() {
			c, _ := newTestClient()

			_, err := c.Pods.Create(ctx, &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "empty"}}, NoWait())

			Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.InvalidResourceBody))
		})

		It("Should reject a body without a name", func() {
			c, _ := newTestClient()

			_, err := c.Pods.Create(ctx, &corev1.Pod{Spec: corev1.PodSpec{Containers: containers("web")}}, NoWait())

			Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.InvalidResourceBody))
		})

		It("Should place the pod in the default namespace", func() {
			c, fakeClient := newTestClient()

			name, err := c.Pods.Create(ctx, newPod("web", "web"), NoWait())
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("web"))

			stored := &corev1.Pod{}
			Expect(fakeClient.Get(ctx, client.ObjectKey{Namespace: testNamespace, Name: "web"}, stored)).To(Succeed())
		})

		It("Should wait until every container started", func() {
			c, fakeClient := newTestClient()
			emitEvents(ctx, fakeClient, "web", "Pulling image", "Started container web", "Started container sidecar")

			_, err := c.Pods.Create(ctx, newPod("web", "web", "sidecar"), Wait())

			Expect(err).NotTo(HaveOccurred())
		})

		It("Should time out when a container never starts", func() {
			c, fakeClient := newTestClient()
			emitEvents(ctx, fakeClient, "web", "Started container web")

			_, err := c.Pods.Create(ctx, newPod("web", "web", "sidecar"), shortWait())

			Expect(kubeerr.IsTimeout(err)).To(BeTrue(), "got %v", err)
			Expect(err.Error()).To(ContainSubstring("default/web"))
		})

		It("Should fail fast when the image cannot be pulled", func() {
			c, fakeClient := newTestClient()
			emitEvents(ctx, fakeClient, "web", "Failed to pull image \"nginx:nope\"")

			start := time.Now()
			_, err := c.Pods.Create(ctx, newPod("web", "web"), Wait())

			Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.ImagePullFailed))
			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
		})

		It("Should surface a crashing container as a runtime failure", func() {
			c, fakeClient := newTestClient()
			pod := newPod("web", "web")
			pod.Status.ContainerStatuses[0].State = corev1.ContainerState{
				Terminated: &corev1.ContainerStateTerminated{Reason: "Error", ExitCode: 1},
			}
			emitEvents(ctx, fakeClient, "web", "Started container web")

			_, err := c.Pods.Create(ctx, pod, Wait())

			Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.RuntimeFailure))
		})

		It("Should translate a duplicate into AlreadyExists", func() {
			c, _ := newTestClient(runningPod("web", nil))

			_, err := c.Pods.Create(ctx, newPod("web", "web"), NoWait())

			Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.AlreadyExists))
		})
	})

	Context("When reading pods", func() {
		It("Should translate a missing pod into NotFound", func() {
			c, _ := newTestClient()

			_, err := c.Pods.Get(ctx, "", "missing")

			Expect(kubeerr.IsNotFound(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("get pod default/missing"))
		})

		It("Should expose status fields", func() {
			c, _ := newTestClient(runningPod("web", nil))

			Expect(c.Pods.IP(ctx, "", "web")).To(Equal("10.0.0.12"))
			Expect(c.Pods.HostIP(ctx, "", "web")).To(Equal("192.168.1.4"))
			Expect(c.Pods.Phase(ctx, "", "web")).To(Equal(corev1.PodRunning))
			Expect(c.Pods.UID(ctx, "", "web")).To(Equal(types.UID("web-uid")))
		})

		It("Should filter lists with a field selector", func() {
			pending := runningPod("pending", nil)
			pending.Status.Phase = corev1.PodPending
			c, _ := newTestClient(runningPod("a", nil), runningPod("b", nil), pending)

			names, err := c.Pods.ListNames(ctx, ListOptions{FieldSelector: "status.phase==Running"})
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ConsistOf("a", "b"))

			names, err = c.Pods.ListNames(ctx, ListOptions{FieldSelector: "status.phase!=Running"})
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ConsistOf("pending"))
		})

		It("Should reject a malformed field selector", func() {
			c, _ := newTestClient(runningPod("a", nil))

			_, err := c.Pods.List(ctx, ListOptions{FieldSelector: "status.phase"})

			Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.InvalidSelector))
		})

		It("Should find a pod by UID across namespaces", func() {
			other := runningPod("api", nil)
			other.Namespace = "team-a"
			c, _ := newTestClient(runningPod("web", nil), other)

			pods, err := c.Pods.FindByUID(ctx, "", "api-uid")

			Expect(err).NotTo(HaveOccurred())
			Expect(pods).To(HaveLen(1))
			Expect(pods[0].Namespace).To(Equal("team-a"))
		})

		It("Should return only the pod's event messages", func() {
			pod := runningPod("web", nil)
			other := runningPod("other", nil)
			c, _ := newTestClient(pod, other,
				eventFor(pod, "Pod", "Scheduled"),
				eventFor(pod, "Pod", ""),
				eventFor(other, "Pod", "Unrelated"),
				startedEvent(pod))

			messages, err := c.Pods.EventMessages(ctx, "", "web")

			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(ConsistOf("Scheduled", "Started container web"))
		})

		It("Should read logs through the clientset", func() {
			c, _ := newTestClient(runningPod("web", nil))

			logs, err := c.Pods.Logs(ctx, "", "web", "")

			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(Equal("fake logs"))
		})

		It("Should refuse exec without a REST config", func() {
			c, _ := newTestClient(runningPod("web", nil))

			_, err := c.Pods.Exec(ctx, "", "web", "ls", ExecOptions{})

			Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.Unknown))
		})
	})

	Context("When deleting a pod", func() {
		It("Should wait until the pod is gone", func() {
			c, fakeClient := newTestClient(runningPod("web", nil))

			Expect(c.Pods.Delete(ctx, "", "web", Wait())).To(Succeed())

			err := fakeClient.Get(ctx, client.ObjectKey{Namespace: testNamespace, Name: "web"}, &corev1.Pod{})
			Expect(client.IgnoreNotFound(err)).To(Succeed())
			Expect(err).To(HaveOccurred())
		})

		It("Should treat a recreated pod of the same name as deleted", func() {
			c, fakeClient := newRecreatingClient(runningPod("web-0", nil))

			Expect(c.Pods.Delete(ctx, "", "web-0", shortWait())).To(Succeed())

			live := &corev1.Pod{}
			Expect(fakeClient.Get(ctx, client.ObjectKey{Namespace: testNamespace, Name: "web-0"}, live)).To(Succeed())
			Expect(live.UID).NotTo(Equal(types.UID("web-0-uid")))
		})

		It("Should wait for every owned pod even when some are recreated", func() {
			first, second := runningPod("web-0", nil), runningPod("web-1", nil)
			c, _ := newRecreatingClient(first, second)

			Expect(c.Pods.Delete(ctx, "", "web-0", NoWait())).To(Succeed())

			err := c.Pods.awaitDeleted(ctx, []corev1.Pod{*first, *second}, shortWait())

			Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.Timeout))
			Expect(err.Error()).To(ContainSubstring("pod default/web-1 to be deleted"))
		})

		It("Should keep waiting while the same pod still exists", func() {
			c, _ := newRecreatingClient(runningPod("web-0", nil))

			err := c.Pods.WaitForDeletion(ctx, "", "web-0", shortWait())

			Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.Timeout))
		})

		It("Should translate deleting a missing pod into NotFound", func() {
			c, _ := newTestClient()

			err := c.Pods.Delete(ctx, "", "missing", NoWait())

			Expect(kubeerr.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("When patching a pod", func() {
		It("Should apply a merge patch", func() {
			pod := runningPod("web", nil)
			c, _ := newTestClient(pod)

			patch := []byte(`{"metadata":{"labels":{"tier":"frontend"}}}`)
			Expect(c.Pods.Patch(ctx, "", "web", patch)).To(Succeed())

			got, err := c.Pods.Get(ctx, "", "web")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Labels).To(HaveKeyWithValue("app", "web"))
			Expect(got.Labels).To(HaveKeyWithValue("tier", "frontend"))
		})
	})
})
