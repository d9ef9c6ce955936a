/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/yaml"

	"github.com/chazu/litekube/pkg/kube"
	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/manifest"
)

// kindAliases maps the accepted spellings of a kind onto its canonical name
var kindAliases = map[string]string{
	"pod": "pod", "pods": "pod", "po": "pod",
	"deployment": "deployment", "deployments": "deployment", "deploy": "deployment",
	"daemonset": "daemonset", "daemonsets": "daemonset", "ds": "daemonset",
	"service": "service", "services": "service", "svc": "service",
	"namespace": "namespace", "namespaces": "namespace", "ns": "namespace",
	"secret": "secret", "secrets": "secret",
	"node": "node", "nodes": "node", "no": "node",
}

func resolveKind(arg string) (string, error) {
	kind, ok := kindAliases[strings.ToLower(arg)]
	if !ok {
		return "", kubeerr.Newf(kubeerr.InvalidResourceBody, "unknown kind %q", arg)
	}
	return kind, nil
}

func namespaceFlag(cmd *cobra.Command) string {
	ns, _ := cmd.Flags().GetString("namespace")
	return ns
}

func waitOptions(cmd *cobra.Command, wait bool) kube.WaitOptions {
	timeout, _ := cmd.Flags().GetDuration("wait-timeout")
	workers, _ := cmd.Flags().GetInt("max-workers")
	return kube.WaitOptions{Wait: wait, Timeout: timeout, MaxWorkers: workers}
}

func printYAML(out io.Writer, obj any) error {
	data, err := yaml.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to render object: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func printLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <name>",
		Short: "Print a resource as YAML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := resolveKind(args[0])
			if err != nil {
				return err
			}
			obj, err := a.get(cmd.Context(), kind, namespaceFlag(cmd), args[1])
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), obj)
		},
	}
}

func (a *app) get(ctx context.Context, kind, ns, name string) (any, error) {
	c := a.client
	switch kind {
	case "pod":
		return c.Pods.Get(ctx, ns, name)
	case "deployment":
		return c.Deployments.Get(ctx, ns, name)
	case "daemonset":
		return c.DaemonSets.Get(ctx, ns, name)
	case "service":
		return c.Services.Get(ctx, ns, name)
	case "namespace":
		return c.Namespaces.Get(ctx, name)
	case "secret":
		return c.Secrets.Get(ctx, ns, name)
	default:
		return c.Nodes.Get(ctx, name)
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		allNamespaces bool
		fieldSelector string
	)
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "Print the names of matching resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := resolveKind(args[0])
			if err != nil {
				return err
			}
			opts := kube.ListOptions{
				Namespace:     namespaceFlag(cmd),
				AllNamespaces: allNamespaces,
				FieldSelector: fieldSelector,
			}
			names, err := a.listNames(cmd.Context(), kind, opts)
			if err != nil {
				return err
			}
			printLines(cmd.OutOrStdout(), names)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&allNamespaces, "all-namespaces", "A", false, "List across every namespace")
	cmd.Flags().StringVar(&fieldSelector, "field-selector", "", "Filter such as status.phase==Running,metadata.name!=web")
	return cmd
}

func (a *app) listNames(ctx context.Context, kind string, opts kube.ListOptions) ([]string, error) {
	c := a.client
	switch kind {
	case "pod":
		return c.Pods.ListNames(ctx, opts)
	case "deployment":
		return c.Deployments.ListNames(ctx, opts)
	case "daemonset":
		return c.DaemonSets.ListNames(ctx, opts)
	case "service":
		return c.Services.ListNames(ctx, opts)
	case "namespace":
		return c.Namespaces.ListNames(ctx, opts.FieldSelector)
	case "secret":
		return c.Secrets.ListNames(ctx, opts)
	default:
		return c.Nodes.ListNames(ctx, opts.FieldSelector)
	}
}

func newWaitCmd(a *app) *cobra.Command {
	var (
		forState   string
		apiVersion string
	)
	cmd := &cobra.Command{
		Use:   "wait <kind> <name>",
		Short: "Block until a resource reaches a state",
		Long: "Block until a resource reaches a state. --for accepts running, deleted, " +
			"or condition=<type>[=<status>] for any kind served by the cluster.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, ns, name := cmd.Context(), namespaceFlag(cmd), args[1]
			opts := waitOptions(cmd, true)

			if condition, ok := strings.CutPrefix(forState, "condition="); ok {
				conditionType, status, found := strings.Cut(condition, "=")
				if !found {
					status = "True"
				}
				gvk := schema.FromAPIVersionAndKind(apiVersion, args[0])
				return a.client.WaitForCondition(ctx, gvk, ns, name, conditionType, status, opts)
			}

			kind, err := resolveKind(args[0])
			if err != nil {
				return err
			}
			switch {
			case forState == "running" && kind == "pod":
				return a.client.Pods.WaitForContainersToRun(ctx, ns, name, opts)
			case forState == "running" && kind == "deployment":
				return a.client.Deployments.WaitForRunning(ctx, ns, name, opts)
			case forState == "running" && kind == "daemonset":
				return a.client.DaemonSets.WaitForRunning(ctx, ns, name, opts)
			case forState == "deleted" && kind == "pod":
				return a.client.Pods.WaitForDeletion(ctx, ns, name, opts)
			}
			return kubeerr.Newf(kubeerr.InvalidResourceBody, "cannot wait for %s to be %s", kind, forState)
		},
	}
	cmd.Flags().StringVar(&forState, "for", "running", "State to wait for")
	cmd.Flags().StringVar(&apiVersion, "api-version", "v1", "API version of the kind when waiting for a condition")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var (
		file string
		wait bool
	)
	cmd := &cobra.Command{
		Use:   "delete (<kind> <name> | -f <file>)",
		Short: "Delete resources",
		Args: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, opts := cmd.Context(), waitOptions(cmd, wait)
			if file != "" {
				objs, err := decodeFile(file)
				if err != nil {
					return err
				}
				return manifest.Delete(ctx, a.client, objs, opts)
			}

			kind, err := resolveKind(args[0])
			if err != nil {
				return err
			}
			return a.delete(ctx, kind, namespaceFlag(cmd), args[1], opts)
		},
	}
	cmd.Flags().StringVarP(&file, "filename", "f", "", "Manifest whose objects are deleted, - for stdin")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the resources are gone")
	return cmd
}

func (a *app) delete(ctx context.Context, kind, ns, name string, opts kube.WaitOptions) error {
	c := a.client
	switch kind {
	case "pod":
		return c.Pods.Delete(ctx, ns, name, opts)
	case "deployment":
		return c.Deployments.Delete(ctx, ns, name, opts)
	case "daemonset":
		return c.DaemonSets.Delete(ctx, ns, name, opts)
	case "service":
		return c.Services.Delete(ctx, ns, name, opts)
	case "namespace":
		return c.Namespaces.Delete(ctx, name, opts)
	case "secret":
		return c.Secrets.Delete(ctx, ns, name, opts)
	}
	return kubeerr.Newf(kubeerr.InvalidResourceBody, "cannot delete a %s", kind)
}

func newScaleCmd(a *app) *cobra.Command {
	var (
		replicas int32
		restart  bool
		wait     bool
	)
	cmd := &cobra.Command{
		Use:   "scale <deployment>",
		Short: "Change the replica count of a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, ns, opts := cmd.Context(), namespaceFlag(cmd), waitOptions(cmd, wait)
			if restart {
				return a.client.Deployments.ScaleDownUp(ctx, ns, args[0], opts)
			}
			if replicas < 0 {
				return kubeerr.New(kubeerr.InvalidResourceBody, "--replicas is required and must not be negative")
			}
			return a.client.Deployments.Scale(ctx, ns, args[0], replicas, opts)
		},
	}
	cmd.Flags().Int32Var(&replicas, "replicas", -1, "Desired number of replicas")
	cmd.Flags().BoolVar(&restart, "restart", false, "Scale to zero and back to replace every pod")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the deployment has the new size")
	return cmd
}

func newApplyCmd(a *app) *cobra.Command {
	var (
		file string
		wait bool
	)
	cmd := &cobra.Command{
		Use:   "apply -f <file>",
		Short: "Create the objects of a manifest in dependency order",
		Long:  "Create the objects of a manifest in dependency order. Supported kinds: " + strings.Join(manifest.Supported(), ", "),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			objs, err := decodeFile(file)
			if err != nil {
				return err
			}
			refs, err := manifest.Apply(cmd.Context(), a.client, objs, waitOptions(cmd, wait))
			for _, ref := range refs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s created\n", ref)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "filename", "f", "", "Manifest to apply, - for stdin")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until every object is ready")
	_ = cmd.MarkFlagRequired("filename")
	return cmd
}

func decodeFile(path string) ([]*unstructured.Unstructured, error) {
	if path == "-" {
		return manifest.Decode(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return manifest.Decode(f)
}

func newLogsCmd(a *app) *cobra.Command {
	var container string
	cmd := &cobra.Command{
		Use:   "logs <pod>",
		Short: "Print the logs of a pod",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := a.client.Pods.Logs(cmd.Context(), namespaceFlag(cmd), args[0], container)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), logs)
			return err
		},
	}
	cmd.Flags().StringVarP(&container, "container", "c", "", "Container to read; defaults to the only container")
	return cmd
}

func newExecCmd(a *app) *cobra.Command {
	var (
		container string
		node      bool
	)
	cmd := &cobra.Command{
		Use:   "exec <pod|node> -- <command>",
		Short: "Run a shell command in a pod, or on a node over SSH",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, command := cmd.Context(), strings.Join(args[1:], " ")

			var (
				output string
				err    error
			)
			if node {
				output, err = a.client.Nodes.Execute(ctx, args[0], command)
			} else {
				output, err = a.client.Pods.Exec(ctx, namespaceFlag(cmd), args[0], command, kube.ExecOptions{Container: container})
			}
			if _, writeErr := io.WriteString(cmd.OutOrStdout(), output); writeErr != nil && err == nil {
				err = writeErr
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&container, "container", "c", "", "Container to run in; defaults to the only container")
	cmd.Flags().BoolVar(&node, "node", false, "Treat the target as a node and connect over SSH")
	return cmd
}

func newLabelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "label <node> <key=value>",
		Short: "Add a label to a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client.Nodes.AddLabel(cmd.Context(), args[0], args[1])
		},
	}
}
