package kube

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kubeerr"
)

// Secrets manages secrets
type Secrets struct {
	*api
}

func newSecret() *corev1.Secret { return &corev1.Secret{} }

// Create creates the secret and returns its name. With opts.Wait it blocks
// until the secret can be read back.
func (s *Secrets) Create(ctx context.Context, secret *corev1.Secret, opts WaitOptions) (string, error) {
	if secret == nil || secret.Name == "" {
		return "", kubeerr.New(kubeerr.InvalidResourceBody, "secret body must have metadata.name")
	}
	secret.Namespace = s.namespace(secret.Namespace)

	if err := s.create(ctx, "secret", secret); err != nil {
		return "", err
	}
	key := objectKey(secret.Namespace, secret.Name)
	log.FromContext(ctx).Info("Created secret", "secret", key)

	if opts.Wait {
		if err := s.WaitForCreation(ctx, secret.Namespace, secret.Name, opts); err != nil {
			return secret.Name, err
		}
	}
	return secret.Name, nil
}

// WaitForCreation blocks until the secret can be read back
func (s *Secrets) WaitForCreation(ctx context.Context, namespace, name string, opts WaitOptions) error {
	namespace = s.namespace(namespace)
	return s.pollerFor(opts).Await(ctx, fmt.Sprintf("secret %s to be created", objectKey(namespace, name)),
		readyCondition(s.api, "secret", namespace, name, newSecret, func(*corev1.Secret) bool { return true }))
}

// Delete deletes the secret. With opts.Wait it blocks until it is gone.
func (s *Secrets) Delete(ctx context.Context, namespace, name string, opts WaitOptions) error {
	namespace = s.namespace(namespace)
	secret := newSecret()
	secret.Name, secret.Namespace = name, namespace
	uid, err := s.deleteCurrent(ctx, "secret", secret)
	if err != nil {
		return err
	}
	key := objectKey(namespace, name)
	log.FromContext(ctx).Info("Deleted secret", "secret", key, "uid", uid)

	if opts.Wait {
		return s.pollerFor(opts).Await(ctx, fmt.Sprintf("secret %s to be deleted", key),
			goneCondition(s.api, "secret", namespace, name, uid, newSecret()))
	}
	return nil
}

// Get returns the secret
func (s *Secrets) Get(ctx context.Context, namespace, name string) (*corev1.Secret, error) {
	secret := newSecret()
	if err := s.get(ctx, "secret", s.namespace(namespace), name, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// List returns the secrets matching opts
func (s *Secrets) List(ctx context.Context, opts ListOptions) ([]corev1.Secret, error) {
	var list corev1.SecretList
	if err := s.list(ctx, "secrets", &list, opts); err != nil {
		return nil, err
	}
	return filter(list.Items, opts.FieldSelector)
}

// ListNames returns the names of the secrets matching opts
func (s *Secrets) ListNames(ctx context.Context, opts ListOptions) ([]string, error) {
	secrets, err := s.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return lo.Map(secrets, func(secret corev1.Secret, _ int) string { return secret.Name }), nil
}

// Patch applies patch to the secret
func (s *Secrets) Patch(ctx context.Context, namespace, name string, patch []byte) error {
	secret := newSecret()
	secret.Name, secret.Namespace = name, s.namespace(namespace)
	if err := s.patch(ctx, "secret", secret, mergePatch(patch)); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Patched secret", "secret", objectKey(secret.Namespace, name))
	return nil
}
