package kube

import (
	"bytes"
	"context"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kubeerr"
)

// DefaultCommandPrefix wraps commands run by Exec
var DefaultCommandPrefix = []string{"sh", "-c"}

// ExecOptions tunes Exec
type ExecOptions struct {
	// Container to run in; empty selects the only container of the pod
	Container string

	// CommandPrefix is prepended to the command; nil uses DefaultCommandPrefix
	CommandPrefix []string

	// Stdin is streamed to the command when set
	Stdin io.Reader

	// TTY allocates a terminal
	TTY bool

	// IgnoreStderr drops stderr instead of appending it to the output
	IgnoreStderr bool
}

// Exec runs command inside the pod and returns its output
func (p *Pods) Exec(ctx context.Context, namespace, name, command string, opts ExecOptions) (string, error) {
	namespace = p.namespace(namespace)
	op := fmt.Sprintf("exec in pod %s", objectKey(namespace, name))
	if p.clientset == nil || p.restConfig == nil {
		return "", kubeerr.New(kubeerr.Unknown, op+": exec requires a REST config")
	}

	prefix := opts.CommandPrefix
	if prefix == nil {
		prefix = DefaultCommandPrefix
	}
	argv := append(append([]string{}, prefix...), command)

	req := p.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(namespace).
		Name(name).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: opts.Container,
			Command:   argv,
			Stdin:     opts.Stdin != nil,
			Stdout:    true,
			Stderr:    !opts.IgnoreStderr,
			TTY:       opts.TTY,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(p.restConfig, "POST", req.URL())
	if err != nil {
		return "", kubeerr.Translate(op, err)
	}

	var out bytes.Buffer
	streamOpts := remotecommand.StreamOptions{
		Stdin:  opts.Stdin,
		Stdout: &out,
		Tty:    opts.TTY,
	}
	if !opts.IgnoreStderr {
		streamOpts.Stderr = &out
	}
	if err := executor.StreamWithContext(ctx, streamOpts); err != nil {
		return out.String(), kubeerr.Translate(op, err)
	}

	log.FromContext(ctx).Info("Executed command in pod", "pod", objectKey(namespace, name), "command", argv, "container", opts.Container)
	return out.String(), nil
}
