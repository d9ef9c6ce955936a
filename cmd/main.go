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
	goflag "flag"
	"os"
	"path/filepath"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/chazu/litekube/pkg/config"
	"github.com/chazu/litekube/pkg/kube"
)

var setupLog = ctrl.Log.WithName("setup")

// app carries the state shared by every subcommand
type app struct {
	v       *viper.Viper
	cfgFile string
	client  *kube.Client
}

func main() {
	if err := newRootCmd().ExecuteContext(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	zapOpts := zap.Options{Development: true}

	cmd := &cobra.Command{
		Use:   "litekube <command> [flags]",
		Short: "Create, inspect and wait on Kubernetes resources",
		Example: heredoc.Doc(`
			$ litekube apply -f stack.yaml --wait
			$ litekube wait deployment web --for running --timeout 2m
			$ litekube list pods --field-selector status.phase==Running
		`),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
			return a.connect(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	zapFlags := goflag.NewFlagSet("zap", goflag.ContinueOnError)
	zapOpts.BindFlags(zapFlags)
	cmd.PersistentFlags().AddGoFlagSet(zapFlags)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file (default is $HOME/.litekube.yaml)")
	flags.String(config.KeyKubeconfig, "", "Path to the kubeconfig file")
	flags.StringP(config.KeyNamespace, "n", "", "Namespace of the resource")
	flags.Duration(config.KeyWaitTimeout, 0, "How long a wait may take")
	flags.Duration(config.KeyPollInterval, 0, "Pause between two checks of a wait condition")
	flags.Int(config.KeyMaxWorkers, 0, "Upper bound on concurrent waits")
	flags.String(config.KeySSHUser, "", "User for commands run on nodes")
	flags.String(config.KeySSHKeyPath, "", "Private key for commands run on nodes")
	for _, key := range []string{
		config.KeyKubeconfig, config.KeyNamespace, config.KeyWaitTimeout, config.KeyPollInterval,
		config.KeyMaxWorkers, config.KeySSHUser, config.KeySSHKeyPath,
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(key))
	}

	cmd.AddCommand(
		newGetCmd(a),
		newListCmd(a),
		newWaitCmd(a),
		newDeleteCmd(a),
		newScaleCmd(a),
		newApplyCmd(a),
		newLogsCmd(a),
		newExecCmd(a),
		newLabelCmd(a),
	)
	return cmd
}

// connect loads the configuration and builds the cluster client. Flags take
// precedence over LITEKUBE_* variables, which take precedence over the file.
func (a *app) connect(cmd *cobra.Command) error {
	if err := a.readConfigFile(); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	restConfig, err := restConfigFor(cfg.Kubeconfig)
	if err != nil {
		return err
	}
	a.client, err = kube.New(restConfig, cfg)
	if err != nil {
		return err
	}

	ctx := log.IntoContext(cmd.Context(), ctrl.Log.WithName("litekube"))
	cmd.SetContext(ctx)
	return nil
}

func (a *app) readConfigFile() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		return a.v.ReadInConfig()
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	path := filepath.Join(home, ".litekube.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	a.v.SetConfigFile(path)
	return a.v.ReadInConfig()
}

func restConfigFor(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	return ctrlconfig.GetConfig()
}
