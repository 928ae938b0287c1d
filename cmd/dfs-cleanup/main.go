// dfs-cleanup resets the prototype's local state: log files, per-node
// storage directories, the client download directory, and the registry rows.
//
//	dfs-cleanup -logs        # logs only
//	dfs-cleanup -all         # logs, storage dirs, downloads, registry rows
package main

import (
	"flag"
	"fmt"
	"log"

	"distfs/internal/config"
	"distfs/internal/paths"
	"distfs/internal/registry"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "cluster config file")
	all := flag.Bool("all", false, "clean logs, storage dirs, downloads and registry rows")
	logs := flag.Bool("logs", false, "clean only logs")
	flag.Parse()

	switch {
	case *all:
		cleanLogs()
		cleanCluster(*configPath)
	case *logs:
		cleanLogs()
	default:
		flag.Usage()
	}
}

func cleanLogs() {
	removeDir(paths.LogsDir)
}

func cleanCluster(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	nodes, err := cfg.Nodes()
	if err != nil {
		log.Fatalf("resolve nodes: %v", err)
	}
	for _, id := range nodes {
		removeDir(id.StorageDir())
	}
	removeDir(paths.ReceivedFilesDir)

	reg, err := registry.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open registry %s: %v", cfg.Database, err)
	}
	defer reg.Close()

	fmt.Printf("Resetting registry: %s\n", cfg.Database)
	if err := reg.Reset(); err != nil {
		log.Fatalf("reset registry: %v", err)
	}
}

func removeDir(dir string) {
	fmt.Printf("Deleting dir: %s\n", dir)
	if err := paths.RemoveDir(dir); err != nil {
		log.Printf("delete %s: %v", dir, err)
	}
}
