package kube

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/chazu/litekube/pkg/kubeerr"
)

var _ = Describe("Deployments", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	// webCluster seeds deployment "web" with one replica set and replicas
	// running pods, plus an unrelated "api" deployment
	webCluster := func(replicas int32) ([]client.Object, []*corev1.Pod) {
		owner := ownerRef("ReplicaSet", "web-5d8f")
		objs := []client.Object{
			deployment("web", replicas),
			replicaSet("web-5d8f", "web"),
			deployment("api", 1),
			replicaSet("api-7c6b", "api"),
		}
		apiOwner := ownerRef("ReplicaSet", "api-7c6b")
		objs = append(objs, runningPod("api-1", &apiOwner))

		var pods []*corev1.Pod
		for _, name := range []string{"web-1", "web-2", "web-3"}[:replicas] {
			pod := runningPod(name, &owner)
			pods = append(pods, pod)
			objs = append(objs, pod, startedEvent(pod))
		}
		return objs, pods
	}

	Context("When listing the pods of a deployment", func() {
		It("Should follow the owner references through its replica sets", func() {
			objs, _ := webCluster(3)
			c, _ := newTestClient(objs...)

			pods, err := c.Deployments.Pods(ctx, "", "web")

			Expect(err).NotTo(HaveOccurred())
			names := make([]string, 0, len(pods))
			for _, pod := range pods {
				names = append(names, pod.Name)
			}
			Expect(names).To(ConsistOf("web-1", "web-2", "web-3"))
		})

		It("Should return nothing for a deployment without replica sets", func() {
			c, _ := newTestClient(deployment("idle", 0))

			pods, err := c.Deployments.Pods(ctx, "", "idle")

			Expect(err).NotTo(HaveOccurred())
			Expect(pods).To(BeEmpty())
		})
	})

	Context("When waiting for a deployment", func() {
		It("Should succeed once every pod runs", func() {
			objs, _ := webCluster(3)
			c, _ := newTestClient(objs...)

			Expect(c.Deployments.WaitForRunning(ctx, "", "web", shortWait())).To(Succeed())
		})

		It("Should time out while replicas are missing", func() {
			d := deployment("web", 3)
			d.Status.Replicas = 1
			c, _ := newTestClient(d)

			err := c.Deployments.WaitForRunning(ctx, "", "web", shortWait())

			Expect(kubeerr.IsTimeout(err)).To(BeTrue(), "got %v", err)
		})

		It("Should time out when a pod never reports its containers started", func() {
			owner := ownerRef("ReplicaSet", "web-5d8f")
			c, _ := newTestClient(deployment("web", 1), replicaSet("web-5d8f", "web"), runningPod("web-1", &owner))

			err := c.Deployments.WaitForRunning(ctx, "", "web", shortWait())

			Expect(kubeerr.IsTimeout(err)).To(BeTrue(), "got %v", err)
			Expect(err.Error()).To(ContainSubstring("web-1"))
		})
	})

	Context("When creating a deployment", func() {
		It("Should reject a template without containers", func() {
			c, _ := newTestClient()
			d := deployment("web", 1)
			d.Spec.Template.Spec.Containers = nil

			_, err := c.Deployments.Create(ctx, d, NoWait())

			Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.InvalidResourceBody))
		})

		It("Should reject a nil body", func() {
			c, _ := newTestClient()

			_, err := c.Deployments.Create(ctx, nil, NoWait())

			Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.InvalidResourceBody))
		})

		It("Should create the deployment without waiting", func() {
			c, _ := newTestClient()
			d := deployment("web", 2)
			d.Namespace = ""
			d.UID = ""

			name, err := c.Deployments.Create(ctx, d, NoWait())

			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("web"))
			names, err := c.Deployments.ListNames(ctx, ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ConsistOf("web"))
		})
	})

	Context("When deleting a deployment", func() {
		It("Should wait for the pods it owned to disappear", func() {
			objs, pods := webCluster(2)
			c, fakeClient := newTestClient(objs...)
			deleteLater(ctx, fakeClient, pods[0], pods[1])

			Expect(c.Deployments.Delete(ctx, "", "web", shortWait())).To(Succeed())

			_, err := c.Deployments.Get(ctx, "", "web")
			Expect(kubeerr.IsNotFound(err)).To(BeTrue())
		})

		It("Should time out while an owned pod remains", func() {
			objs, _ := webCluster(1)
			c, _ := newTestClient(objs...)

			err := c.Deployments.Delete(ctx, "", "web", shortWait())

			Expect(kubeerr.IsTimeout(err)).To(BeTrue(), "got %v", err)
		})
	})

	Context("When scaling a deployment", func() {
		It("Should set the replica count", func() {
			objs, _ := webCluster(2)
			c, _ := newTestClient(objs...)

			Expect(c.Deployments.Scale(ctx, "", "web", 5, NoWait())).To(Succeed())

			got, err := c.Deployments.Get(ctx, "", "web")
			Expect(err).NotTo(HaveOccurred())
			Expect(*got.Spec.Replicas).To(Equal(int32(5)))
		})

		It("Should wait on a scale down until the surplus pods are gone", func() {
			objs, pods := webCluster(3)
			c, fakeClient := newTestClient(objs...)
			deleteLater(ctx, fakeClient, pods[2])

			Expect(c.Deployments.Scale(ctx, "", "web", 2, shortWait())).To(Succeed())

			remaining, err := c.Deployments.Pods(ctx, "", "web")
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(HaveLen(2))
		})

		It("Should return NotFound for a missing deployment", func() {
			c, _ := newTestClient()

			err := c.Deployments.Scale(ctx, "", "missing", 2, NoWait())

			Expect(kubeerr.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("When patching a deployment", func() {
		It("Should not wait for replacement pods when the template is unchanged", func() {
			objs, _ := webCluster(2)
			c, _ := newTestClient(objs...)

			patch := []byte(`{"metadata":{"labels":{"team":"core"}}}`)
			Expect(c.Deployments.Patch(ctx, "", "web", patch, shortWait())).To(Succeed())

			got, err := c.Deployments.Get(ctx, "", "web")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Labels).To(HaveKeyWithValue("team", "core"))
		})

		It("Should wait for the previous pods when the template changed", func() {
			objs, _ := webCluster(1)
			c, _ := newTestClient(objs...)

			patch := []byte(`{"spec":{"template":{"metadata":{"labels":{"rev":"2"}}}}}`)
			err := c.Deployments.Patch(ctx, "", "web", patch, shortWait())

			Expect(kubeerr.IsTimeout(err)).To(BeTrue(), "got %v", err)
			Expect(err.Error()).To(ContainSubstring("to be deleted"))
		})
	})

	Context("When reading deployment events", func() {
		It("Should return only the messages of the deployment", func() {
			d := deployment("web", 1)
			other := deployment("api", 1)
			c, _ := newTestClient(d, other,
				eventFor(d, "Deployment", "Scaled up replica set web-5d8f to 1"),
				eventFor(other, "Deployment", "Scaled up replica set api-7c6b to 1"),
				eventFor(d, "Deployment", ""))

			messages, err := c.Deployments.EventMessages(ctx, "", "web")

			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(Equal([]string{"Scaled up replica set web-5d8f to 1"}))
		})
	})

	Context("When listing deployments", func() {
		It("Should filter on a field selector", func() {
			c, _ := newTestClient(deployment("web", 3), deployment("api", 1))

			names, err := c.Deployments.ListNames(ctx, ListOptions{FieldSelector: "spec.replicas==3"})

			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"web"}))
		})
	})
})

var _ = Describe("DaemonSets", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	daemonSet := func(name string, desired, current int32) *appsv1.DaemonSet {
		return &appsv1.DaemonSet{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace, UID: "agent-uid"},
			Spec: appsv1.DaemonSetSpec{
				Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": name}},
				Template: corev1.PodTemplateSpec{
					ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{"app": name}},
					Spec:       corev1.PodSpec{Containers: containers("web")},
				},
			},
			Status: appsv1.DaemonSetStatus{DesiredNumberScheduled: desired, CurrentNumberScheduled: current},
		}
	}

	It("Should wait until every node runs a pod", func() {
		owner := ownerRef("DaemonSet", "agent")
		pod := runningPod("agent-node1", &owner)
		c, _ := newTestClient(daemonSet("agent", 1, 1), pod, startedEvent(pod))

		Expect(c.DaemonSets.WaitForRunning(ctx, "", "agent", shortWait())).To(Succeed())
	})

	It("Should time out while pods are unscheduled", func() {
		c, _ := newTestClient(daemonSet("agent", 3, 1))

		err := c.DaemonSets.WaitForRunning(ctx, "", "agent", shortWait())

		Expect(kubeerr.IsTimeout(err)).To(BeTrue(), "got %v", err)
	})

	It("Should list only the pods it owns", func() {
		owner := ownerRef("DaemonSet", "agent")
		other := ownerRef("ReplicaSet", "web-5d8f")
		c, _ := newTestClient(daemonSet("agent", 1, 1), runningPod("agent-node1", &owner), runningPod("web-1", &other))

		pods, err := c.DaemonSets.Pods(ctx, "", "agent")

		Expect(err).NotTo(HaveOccurred())
		Expect(pods).To(HaveLen(1))
		Expect(pods[0].Name).To(Equal("agent-node1"))
	})

	It("Should wait for owned pods on delete", func() {
		owner := ownerRef("DaemonSet", "agent")
		pod := runningPod("agent-node1", &owner)
		c, fakeClient := newTestClient(daemonSet("agent", 1, 1), pod)
		deleteLater(ctx, fakeClient, pod)

		Expect(c.DaemonSets.Delete(ctx, "", "agent", shortWait())).To(Succeed())
	})
})
