package kube

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/readiness"
)

// Services manages services
type Services struct {
	*api
}

func newService() *corev1.Service { return &corev1.Service{} }

// Create creates the service and returns its name. With opts.Wait it blocks
// until the service exists and, for LoadBalancer services, has an ingress.
func (s *Services) Create(ctx context.Context, service *corev1.Service, opts WaitOptions) (string, error) {
	if service == nil || service.Name == "" {
		return "", kubeerr.New(kubeerr.InvalidResourceBody, "service body must have metadata.name")
	}
	service.Namespace = s.namespace(service.Namespace)

	if err := s.create(ctx, "service", service); err != nil {
		return "", err
	}
	key := objectKey(service.Namespace, service.Name)
	log.FromContext(ctx).Info("Created service", "service", key)

	if opts.Wait {
		if err := s.WaitForReady(ctx, service.Namespace, service.Name, opts); err != nil {
			return service.Name, err
		}
	}
	return service.Name, nil
}

// WaitForReady blocks until the service exists and, for LoadBalancer
// services, has an ingress
func (s *Services) WaitForReady(ctx context.Context, namespace, name string, opts WaitOptions) error {
	namespace = s.namespace(namespace)
	return s.pollerFor(opts).Await(ctx, fmt.Sprintf("service %s to be ready", objectKey(namespace, name)),
		readyCondition(s.api, "service", namespace, name, newService, readiness.ServiceReady))
}

// Delete deletes the service. With opts.Wait it blocks until it is gone.
func (s *Services) Delete(ctx context.Context, namespace, name string, opts WaitOptions) error {
	namespace = s.namespace(namespace)
	service := newService()
	service.Name, service.Namespace = name, namespace
	uid, err := s.deleteCurrent(ctx, "service", service)
	if err != nil {
		return err
	}
	key := objectKey(namespace, name)
	log.FromContext(ctx).Info("Deleted service", "service", key, "uid", uid)

	if opts.Wait {
		return s.pollerFor(opts).Await(ctx, fmt.Sprintf("service %s to be deleted", key),
			goneCondition(s.api, "service", namespace, name, uid, newService()))
	}
	return nil
}

// Get returns the service
func (s *Services) Get(ctx context.Context, namespace, name string) (*corev1.Service, error) {
	service := newService()
	if err := s.get(ctx, "service", s.namespace(namespace), name, service); err != nil {
		return nil, err
	}
	return service, nil
}

// Ports returns the ports of the service
func (s *Services) Ports(ctx context.Context, namespace, name string) ([]corev1.ServicePort, error) {
	service, err := s.Get(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	return service.Spec.Ports, nil
}

// ClusterIP returns the cluster IP of the service
func (s *Services) ClusterIP(ctx context.Context, namespace, name string) (string, error) {
	service, err := s.Get(ctx, namespace, name)
	if err != nil {
		return "", err
	}
	return service.Spec.ClusterIP, nil
}

// ExternalIP returns the first load balancer ingress IP of the service, or
// an empty string when it has none
func (s *Services) ExternalIP(ctx context.Context, namespace, name string) (string, error) {
	service, err := s.Get(ctx, namespace, name)
	if err != nil {
		return "", err
	}
	if service.Spec.Type != corev1.ServiceTypeLoadBalancer || len(service.Status.LoadBalancer.Ingress) == 0 {
		return "", nil
	}
	return service.Status.LoadBalancer.Ingress[0].IP, nil
}

// List returns the services matching opts
func (s *Services) List(ctx context.Context, opts ListOptions) ([]corev1.Service, error) {
	var list corev1.ServiceList
	if err := s.list(ctx, "services", &list, opts); err != nil {
		return nil, err
	}
	return filter(list.Items, opts.FieldSelector)
}

// ListNames returns the names of the services matching opts
func (s *Services) ListNames(ctx context.Context, opts ListOptions) ([]string, error) {
	services, err := s.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return lo.Map(services, func(service corev1.Service, _ int) string { return service.Name }), nil
}

// Events returns the events of the service
func (s *Services) Events(ctx context.Context, namespace, name string) ([]corev1.Event, error) {
	service, err := s.Get(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	return s.eventsFor(ctx, service.Namespace, service.UID)
}

// Patch applies patch to the service
func (s *Services) Patch(ctx context.Context, namespace, name string, patch []byte) error {
	service := newService()
	service.Name, service.Namespace = name, s.namespace(namespace)
	if err := s.patch(ctx, "service", service, mergePatch(patch)); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Patched service", "service", objectKey(service.Namespace, name))
	return nil
}
