package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/harun/orchestrator/pkg/plugin"
	"github.com/spf13/cobra"
)

var (
	pluginID    string
	pluginPath  string
	pluginTask  []string
	pluginDirs  []string
	pluginWatch bool
)

// pluginRegistry holds the in-process implementations available to the loader
var pluginRegistry = plugin.NewRegistry()

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Run a plugin agent",
	Long: `Run a self-contained plugin agent through its Execute entry point and
print the result mapping as JSON.

Task values are given as key=value pairs; values that parse as JSON are
passed as JSON, anything else as a string.`,
	RunE: runPlugin,
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered agents",
	Long:  `Scan agent directories and print one descriptor per discovered agent.`,
	RunE:  runPluginList,
}

func init() {
	pluginCmd.Flags().StringVar(&pluginID, "id", "", "agent identifier (required)")
	pluginCmd.Flags().StringVar(&pluginPath, "path", "", "artifact directory (default: <plugins dir>/<id>)")
	pluginCmd.Flags().StringArrayVar(&pluginTask, "task", nil, "task value as key=value (repeatable)")
	_ = pluginCmd.MarkFlagRequired("id")

	pluginListCmd.Flags().StringSliceVar(&pluginDirs, "dir", nil, "agent directories to scan (default from config)")
	pluginListCmd.Flags().BoolVar(&pluginWatch, "watch", false, "re-list whenever an AGENT.json changes")

	pluginCmd.AddCommand(pluginListCmd)
	rootCmd.AddCommand(pluginCmd)
}

func newPluginLoader() *plugin.Loader {
	return plugin.NewLoader(plugin.LoaderConfig{
		Registry:    pluginRegistry,
		APIKey:      app.cfg.PrimaryAPIKey(),
		Logger:      baseLogger(),
		HostVersion: app.cfg.Plugins.HostVersion,
	})
}

func runPlugin(cmd *cobra.Command, args []string) error {
	taskConfig, err := parseTaskArgs(pluginTask)
	if err != nil {
		return err
	}

	path := pluginPath
	if path == "" {
		path = findArtifact(pluginID, app.cfg.Plugins.Dirs)
	}

	loader := newPluginLoader()
	invocation := loader.Invoke(commandContext(cmd), plugin.AgentDescriptor{
		ID:   pluginID,
		Path: path,
		Kind: plugin.KindPlugin,
	}, taskConfig)

	if err := writeJSON(cmd.OutOrStdout(), invocation.Result); err != nil {
		return err
	}
	if invocation.Status() == plugin.StatusError {
		return fmt.Errorf("plugin %s failed", pluginID)
	}
	return nil
}

func runPluginList(cmd *cobra.Command, args []string) error {
	dirs := pluginDirs
	if len(dirs) == 0 {
		dirs = app.cfg.Plugins.Dirs
	}

	loader := newPluginLoader()
	discovery := plugin.NewDiscovery(loader)

	list := func() ([]plugin.AgentDescriptor, error) {
		descriptors, err := discovery.Discover(dirs...)
		if err != nil {
			return nil, err
		}
		if descriptors == nil {
			descriptors = []plugin.AgentDescriptor{}
		}
		return descriptors, writeJSON(cmd.OutOrStdout(), descriptors)
	}

	descriptors, err := list()
	if err != nil || !pluginWatch {
		return err
	}

	watched := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Kind == plugin.KindPlugin {
			watched = append(watched, d.Path)
		}
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changed := make(chan string, 1)
	watcher, err := loader.Watch(ctx, func(dir string) {
		select {
		case changed <- dir:
		default:
		}
	}, watched...)
	if err != nil {
		return err
	}
	defer watcher.Close()

	for {
		select {
		case <-changed:
			if _, err := list(); err != nil {
				return err
			}
		case <-watcher.Done():
			return nil
		}
	}
}

// findArtifact returns the first <dir>/<id> that exists, or the first candidate
func findArtifact(id string, dirs []string) string {
	var first string
	for _, dir := range dirs {
		candidate := filepath.Join(dir, id)
		if first == "" {
			first = candidate
		}
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	if first == "" {
		return id
	}
	return first
}

// parseTaskArgs turns key=value pairs into a task mapping
func parseTaskArgs(pairs []string) (map[string]any, error) {
	task := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid task value %q (expected key=value)", pair)
		}

		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			task[key] = decoded
		} else {
			task[key] = value
		}
	}
	return task, nil
}
