package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"treeline/arbor/internal/config"
	"treeline/arbor/internal/db"
	"treeline/arbor/internal/logging"
	"treeline/arbor/internal/metrics"
	"treeline/arbor/internal/tree"
)

// defaultDBName is looked for when walking up from the working directory.
const defaultDBName = ".arbor.db"

var (
	dbPath      string
	configPath  string
	logLevel    string
	metricsFile string
	jsonOut     bool

	registry   = prometheus.NewRegistry()
	collectors = metrics.New(registry)
)

var rootCmd = &cobra.Command{
	Use:          "arbor",
	Short:        "Materialized-path tree maintenance for SQLite node tables",
	SilenceUsage: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if metricsFile == "" {
			return nil
		}
		return prometheus.WriteToTextfile(metricsFile, registry)
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to "+config.FileName)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "JSON output")
}

// DiscoverDB finds the database path using priority: env > flag > config >
// walk-up. With mustExist unset a missing file is acceptable and the walk-up
// falls back to the working directory.
func DiscoverDB(cfg *config.Config, mustExist bool) (string, error) {
	// 1. Environment variable
	if envPath := os.Getenv("ARBOR_DB"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil || !mustExist {
			return envPath, nil
		}
	}

	// 2. CLI flag
	if dbPath != "" {
		if _, err := os.Stat(dbPath); err == nil || !mustExist {
			return dbPath, nil
		}
		return "", fmt.Errorf("database not found at --db path: %s", dbPath)
	}

	// 3. Config file
	if cfg.Database != "" {
		if _, err := os.Stat(cfg.Database); err == nil || !mustExist {
			return cfg.Database, nil
		}
		return "", fmt.Errorf("database not found at configured path: %s", cfg.Database)
	}

	// 4. Walk up from CWD
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	start := dir
	for {
		candidate := filepath.Join(dir, defaultDBName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if !mustExist {
		return filepath.Join(start, defaultDBName), nil
	}

	return "", fmt.Errorf("no %s found (set ARBOR_DB, use --db, or run from a directory containing %s)", defaultDBName, defaultDBName)
}

// OpenEngine loads the config, opens the database and wires the engine.
// The caller closes the returned DB.
func OpenEngine(mustExist bool) (*tree.Engine, *db.DB, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log, err := logging.New(os.Stderr, level)
	if err != nil {
		return nil, nil, err
	}

	path, err := DiscoverDB(cfg, mustExist)
	if err != nil {
		return nil, nil, err
	}
	d, err := db.OpenDB(path, cfg.Schema())
	if err != nil {
		return nil, nil, err
	}
	if mustExist {
		if err := d.CheckSchema(context.Background()); err != nil {
			d.Close()
			return nil, nil, err
		}
	}
	log.Debug().Str("db", path).Str("table", cfg.Table).Msg("database opened")

	engine, err := tree.New(d, cfg.Tree(), tree.WithLogger(log), tree.WithMetrics(collectors))
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	return engine, d, nil
}

// ResolveNode parses a node id argument and loads the node.
func ResolveNode(ctx context.Context, e *tree.Engine, reference string) (*db.Node, error) {
	id, err := parseID(reference)
	if err != nil {
		return nil, err
	}
	return e.Get(ctx, id)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid node id %q", s)
	}
	return id, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printNode(n *db.Node) {
	family := "-"
	if n.FamilyID != nil {
		family = strconv.FormatInt(*n.FamilyID, 10)
	}
	fmt.Printf("  %-6d path=%-20s level=%d children=%d family=%s\n",
		n.ID, n.Path, n.Level, n.ChildrenCount, family)
}

// printNodes writes nodes as JSON or one line each under a heading.
func printNodes(heading string, nodes []db.Node) error {
	if jsonOut {
		if nodes == nil {
			nodes = []db.Node{}
		}
		return printJSON(nodes)
	}
	if len(nodes) == 0 {
		fmt.Printf("No %s\n", heading)
		return nil
	}
	fmt.Printf("%s:\n", heading)
	for i := range nodes {
		printNode(&nodes[i])
	}
	fmt.Printf("\n%d node(s)\n", len(nodes))
	return nil
}
