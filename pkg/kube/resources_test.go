package kube

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"

	"github.com/chazu/litekube/pkg/kubeerr"
)

var _ = Describe("Services", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	service := func(name string, serviceType corev1.ServiceType) *corev1.Service {
		return &corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace},
			Spec: corev1.ServiceSpec{
				Type:      serviceType,
				ClusterIP: "10.96.0.20",
				Ports:     []corev1.ServicePort{{Name: "http", Port: 80}},
			},
		}
	}

	It("Should consider a ClusterIP service ready once it exists", func() {
		c, _ := newTestClient()

		name, err := c.Services.Create(ctx, service("web", corev1.ServiceTypeClusterIP), shortWait())

		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("web"))
	})

	It("Should time out on a LoadBalancer service without an ingress", func() {
		c, _ := newTestClient()

		_, err := c.Services.Create(ctx, service("web", corev1.ServiceTypeLoadBalancer), shortWait())

		Expect(kubeerr.IsTimeout(err)).To(BeTrue(), "got %v", err)
	})

	It("Should report the addresses and ports", func() {
		lb := service("web", corev1.ServiceTypeLoadBalancer)
		lb.Status.LoadBalancer.Ingress = []corev1.LoadBalancerIngress{{IP: "203.0.113.7"}}
		c, _ := newTestClient(lb, service("internal", corev1.ServiceTypeClusterIP))

		Expect(c.Services.ExternalIP(ctx, "", "web")).To(Equal("203.0.113.7"))
		Expect(c.Services.ExternalIP(ctx, "", "internal")).To(BeEmpty())
		Expect(c.Services.ClusterIP(ctx, "", "web")).To(Equal("10.96.0.20"))
		ports, err := c.Services.Ports(ctx, "", "web")
		Expect(err).NotTo(HaveOccurred())
		Expect(ports).To(HaveLen(1))
		Expect(ports[0].Port).To(Equal(int32(80)))
	})

	It("Should filter services on their type", func() {
		c, _ := newTestClient(service("web", corev1.ServiceTypeLoadBalancer), service("internal", corev1.ServiceTypeClusterIP))

		names, err := c.Services.ListNames(ctx, ListOptions{FieldSelector: "spec.type!=LoadBalancer"})

		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(Equal([]string{"internal"}))
	})

	It("Should wait for the service to be deleted", func() {
		c, _ := newTestClient(service("web", corev1.ServiceTypeClusterIP))

		Expect(c.Services.Delete(ctx, "", "web", shortWait())).To(Succeed())

		_, err := c.Services.Get(ctx, "", "web")
		Expect(kubeerr.IsNotFound(err)).To(BeTrue())
	})
})

var _ = Describe("Namespaces", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	namespace := func(name string, phase corev1.NamespacePhase) *corev1.Namespace {
		return &corev1.Namespace{
			ObjectMeta: metav1.ObjectMeta{Name: name},
			Status:     corev1.NamespaceStatus{Phase: phase},
		}
	}

	It("Should wait until the namespace is active", func() {
		c, _ := newTestClient()

		name, err := c.Namespaces.Create(ctx, namespace("team-a", corev1.NamespaceActive), shortWait())

		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("team-a"))
	})

	It("Should time out on a namespace that never becomes active", func() {
		c, _ := newTestClient()

		_, err := c.Namespaces.Create(ctx, namespace("team-a", corev1.NamespaceTerminating), shortWait())

		Expect(kubeerr.IsTimeout(err)).To(BeTrue(), "got %v", err)
		Expect(err.Error()).To(ContainSubstring("namespace team-a to be active"))
	})

	It("Should list namespaces by phase", func() {
		c, _ := newTestClient(namespace("team-a", corev1.NamespaceActive), namespace("team-b", corev1.NamespaceTerminating))

		names, err := c.Namespaces.ListNames(ctx, "status.phase==Active")

		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(Equal([]string{"team-a"}))
	})

	It("Should wait for the namespace to be deleted", func() {
		c, _ := newTestClient(namespace("team-a", corev1.NamespaceActive))

		Expect(c.Namespaces.Delete(ctx, "team-a", shortWait())).To(Succeed())
	})

	It("Should return NotFound when deleting a missing namespace", func() {
		c, _ := newTestClient()

		err := c.Namespaces.Delete(ctx, "missing", NoWait())

		Expect(kubeerr.IsNotFound(err)).To(BeTrue())
	})
})

var _ = Describe("Secrets", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	secret := func(name string, secretType corev1.SecretType) *corev1.Secret {
		return &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace},
			Type:       secretType,
			StringData: map[string]string{"token": "s3cr3t"},
		}
	}

	It("Should create a secret and wait until it can be read", func() {
		c, _ := newTestClient()

		name, err := c.Secrets.Create(ctx, secret("token", corev1.SecretTypeOpaque), shortWait())

		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("token"))
	})

	It("Should filter secrets on their type", func() {
		c, _ := newTestClient(secret("token", corev1.SecretTypeOpaque), secret("registry", corev1.SecretTypeDockerConfigJson))

		names, err := c.Secrets.ListNames(ctx, ListOptions{FieldSelector: "type==Opaque"})

		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(Equal([]string{"token"}))
	})

	It("Should apply a merge patch", func() {
		c, _ := newTestClient(secret("token", corev1.SecretTypeOpaque))

		Expect(c.Secrets.Patch(ctx, "", "token", []byte(`{"metadata":{"annotations":{"rotated":"true"}}}`))).To(Succeed())

		got, err := c.Secrets.Get(ctx, "", "token")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Annotations).To(HaveKeyWithValue("rotated", "true"))
	})

	It("Should reject a body without a name", func() {
		c, _ := newTestClient()

		_, err := c.Secrets.Create(ctx, &corev1.Secret{}, NoWait())

		Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.InvalidResourceBody))
	})
})

var _ = Describe("Nodes", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	node := func(name string, addresses ...corev1.NodeAddress) *corev1.Node {
		return &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{
				Name:   name,
				UID:    types.UID(name + "-uid"),
				Labels: map[string]string{"kubernetes.io/os": "linux"},
			},
			Status: corev1.NodeStatus{
				Addresses:  addresses,
				Conditions: []corev1.NodeCondition{{Type: corev1.NodeReady, Status: corev1.ConditionTrue}},
			},
		}
	}
	internal := corev1.NodeAddress{Type: corev1.NodeInternalIP, Address: "192.168.1.4"}
	external := corev1.NodeAddress{Type: corev1.NodeExternalIP, Address: "198.51.100.4"}

	It("Should report the node addresses", func() {
		c, _ := newTestClient(node("node1", internal, external), node("node2", internal))

		Expect(c.Nodes.InternalIP(ctx, "node1")).To(Equal("192.168.1.4"))
		Expect(c.Nodes.ExternalIP(ctx, "node1")).To(Equal("198.51.100.4"))
		Expect(c.Nodes.ExternalIP(ctx, "node2")).To(BeEmpty())
	})

	It("Should list nodes with a field selector", func() {
		c, _ := newTestClient(node("node1", internal), node("node2", internal))

		names, err := c.Nodes.ListNames(ctx, "metadata.name!=node2")

		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(Equal([]string{"node1"}))
	})

	It("Should add a label and keep the others", func() {
		c, _ := newTestClient(node("node1", internal))

		Expect(c.Nodes.AddLabel(ctx, "node1", "role=edge")).To(Succeed())

		got, err := c.Nodes.Get(ctx, "node1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Labels).To(HaveKeyWithValue("role", "edge"))
		Expect(got.Labels).To(HaveKeyWithValue("kubernetes.io/os", "linux"))
	})

	It("Should reject a label without a value separator", func() {
		c, _ := newTestClient(node("node1", internal))

		err := c.Nodes.AddLabel(ctx, "node1", "role")

		Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.InvalidResourceBody))
	})

	It("Should refuse to execute on a node without an external IP", func() {
		c, _ := newTestClient(node("node1", internal))

		_, err := c.Nodes.Execute(ctx, "node1", "uptime")

		Expect(kubeerr.IsNotFound(err)).To(BeTrue(), "got %v", err)
	})

	It("Should refuse to execute without an SSH key", func() {
		c, _ := newTestClient(node("node1", internal, external))

		_, err := c.Nodes.Execute(ctx, "node1", "uptime")

		Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.Unknown))
		Expect(err.Error()).To(ContainSubstring("SSH key"))
	})

	It("Should reject an unreadable SSH key", func() {
		cfg := testConfig()
		cfg.SSHKeyPath = filepath.Join(GinkgoT().TempDir(), "id_ed25519")
		Expect(os.WriteFile(cfg.SSHKeyPath, []byte("not a key"), 0o600)).To(Succeed())
		base, _ := newTestClient(node("node1", internal, external))
		c := NewForClients(base.Controller(), nil, cfg)

		_, err := c.Nodes.Execute(ctx, "node1", "uptime")

		Expect(kubeerr.KindOf(err)).To(Equal(kubeerr.Unknown))
		Expect(err.Error()).To(ContainSubstring("parse SSH key"))
	})
})

var _ = Describe("WaitForCondition", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	nodeGVK := schema.GroupVersionKind{Version: "v1", Kind: "Node"}

	It("Should succeed once the condition has the wanted status", func() {
		node := &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "node1"},
			Status: corev1.NodeStatus{
				Conditions: []corev1.NodeCondition{{Type: corev1.NodeReady, Status: corev1.ConditionTrue}},
			},
		}
		c, _ := newTestClient(node)

		Expect(c.WaitForCondition(ctx, nodeGVK, "ignored", "node1", "Ready", "True", shortWait())).To(Succeed())
	})

	It("Should time out while the condition has another status", func() {
		node := &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "node1"},
			Status: corev1.NodeStatus{
				Conditions: []corev1.NodeCondition{{Type: corev1.NodeReady, Status: corev1.ConditionFalse}},
			},
		}
		c, _ := newTestClient(node)

		err := c.WaitForCondition(ctx, nodeGVK, "", "node1", "Ready", "True", shortWait())

		Expect(kubeerr.IsTimeout(err)).To(BeTrue(), "got %v", err)
		Expect(err.Error()).To(ContainSubstring("node node1 to have condition Ready=True"))
	})

	It("Should keep waiting while a namespaced object does not exist", func() {
		c, _ := newTestClient()

		err := c.WaitForCondition(ctx, schema.GroupVersionKind{Version: "v1", Kind: "Pod"}, "", "web", "Ready", "True", shortWait())

		Expect(kubeerr.IsTimeout(err)).To(BeTrue(), "got %v", err)
		Expect(err.Error()).To(ContainSubstring("pod default/web"))
	})
})
