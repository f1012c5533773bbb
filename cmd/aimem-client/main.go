package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/peterh/liner"

	"github.com/lexlapax/aimem/pkg/aimem"
	"github.com/lexlapax/aimem/pkg/config"
	"github.com/lexlapax/aimem/pkg/log"
	"github.com/lexlapax/aimem/pkg/memory"
)

// Constants for the command-line interface
const (
	cmdHelp       = "!help"
	cmdQuit       = "!quit"
	cmdRemember   = "!remember"
	cmdLookup     = "!lookup"
	cmdSearch     = "!search"
	cmdForget     = "!forget"
	cmdImportance = "!importance"
	cmdEntity     = "!entity"
	cmdLink       = "!link"
	cmdStats      = "!stats"
	cmdDecay      = "!decay"
	cmdRebuild    = "!rebuild"
	cmdExport     = "!export"
	cmdImport     = "!import"
	cmdConfig     = "!config"
)

// Command-line help text
const helpText = `
AIMem Client - Command Reference:
-----------------------------------------
!help                   - Show this help message
!remember <text>        - Store a memory (deduplicated)
!lookup <query>         - Keyword search (full-text with fallbacks)
!search <query>         - Semantic search (dense or TF-IDF)
!forget <id>            - Delete a memory by id
!importance <id> <v>    - Set a memory's importance (0..1)
!entity <name> [type]   - Create or update an entity
!link <id> <name>       - Link a memory to an entity
!stats                  - Show store statistics
!decay                  - Run one decay sweep over idle memories
!rebuild                - Rebuild the index and vectors from scratch
!export <file>          - Write a JSON snapshot
!import <file>          - Merge a JSON snapshot
!config                 - Show current configuration
!quit                   - Exit the application

Notes:
- Regular text input is treated as a semantic search
- Tab completion is available for commands
- Use up/down arrows for command history`

// historyFile is the file where command history is stored
const historyFile = ".aimem_history"

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	stdinMode := flag.Bool("s", false, "Read from stdin and exit when complete")
	flag.Parse()

	// Optional .env for API keys; absence is fine
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Setup(log.Config{
		Level:  log.Level(cfg.Logging.Level),
		Format: log.Format(cfg.Logging.Format),
	})

	log.Info("Starting AIMem client")

	ctx := context.Background()
	engine, closeStore, err := aimem.NewEngineFromConfig(ctx, cfg)
	if err != nil {
		log.Error("Failed to initialize AIMem client", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	runCLI(ctx, engine, cfg, *stdinMode)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		// Environment overrides and defaults still apply
		return config.LoadFromBytes(nil)
	}
	return config.LoadFromFile(path)
}

// runCLI starts the command-line interface for user interaction
func runCLI(ctx context.Context, engine *memory.Engine, cfg *config.Config, stdinMode bool) {
	if stdinMode {
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("\n=== AIMem Client (stdin mode) ===")
		fmt.Println("Database:", cfg.Storage.Path)
		fmt.Println("Embedding Provider:", providerLabel(cfg))

		for scanner.Scan() {
			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			// Skip comments for stdin-based testing
			if strings.HasPrefix(input, "#") || strings.HasPrefix(input, "//") {
				continue
			}
			if input == cmdQuit {
				fmt.Println("Goodbye!")
				return
			}
			fmt.Print("aimem> ", input, "\n")
			processCommand(ctx, input, engine, cfg)
		}
		if err := scanner.Err(); err != nil {
			fmt.Printf("Error reading stdin: %v\n", err)
		}
		fmt.Println("Goodbye!")
		return
	}

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(false)

	line.SetCompleter(func(line string) (c []string) {
		commands := []string{
			cmdHelp, cmdQuit, cmdRemember, cmdLookup, cmdSearch, cmdForget,
			cmdImportance, cmdEntity, cmdLink, cmdStats, cmdDecay, cmdRebuild,
			cmdExport, cmdImport, cmdConfig,
		}
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, line) {
				c = append(c, cmd)
			}
		}
		return
	})

	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("\n=== AIMem Client ===")
	fmt.Println("Database:", cfg.Storage.Path)
	fmt.Println("Embedding Provider:", providerLabel(cfg))
	fmt.Println("Type !help for available commands.")

	for {
		input, err := line.Prompt("aimem> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nGoodbye!")
				break
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == cmdQuit {
			fmt.Println("Goodbye!")
			break
		}
		processCommand(ctx, input, engine, cfg)
	}
}

// processCommand handles a single command line
func processCommand(ctx context.Context, input string, engine *memory.Engine, cfg *config.Config) {
	if !strings.HasPrefix(input, "!") {
		// Plain text is a semantic search
		runSemanticSearch(ctx, engine, input)
		return
	}

	parts := strings.SplitN(input, " ", 2)
	cmd := parts[0]
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case cmdHelp:
		fmt.Println(helpText)

	case cmdRemember:
		if arg == "" {
			fmt.Println("Usage: !remember <text>")
			return
		}
		result, err := engine.Add(ctx, arg, memory.AddOptions{})
		if err != nil {
			fmt.Printf("Error storing memory: %v\n", err)
			return
		}
		if result.Duplicate {
			fmt.Printf("Duplicate of memory %d (similarity %.3f), importance raised to %.2f\n",
				result.Memory.ID, result.Similarity, result.Memory.Importance)
		} else {
			fmt.Printf("Stored memory %d\n", result.Memory.ID)
		}

	case cmdLookup:
		if arg == "" {
			fmt.Println("Usage: !lookup <query>")
			return
		}
		results, err := engine.Search(ctx, arg, memory.SearchOptions{})
		if err != nil {
			fmt.Printf("Error searching: %v\n", err)
			return
		}
		printResults(results)

	case cmdSearch:
		if arg == "" {
			fmt.Println("Usage: !search <query>")
			return
		}
		runSemanticSearch(ctx, engine, arg)

	case cmdForget:
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			fmt.Println("Usage: !forget <id>")
			return
		}
		if err := engine.Forget(ctx, id); err != nil {
			fmt.Printf("Error deleting memory: %v\n", err)
			return
		}
		fmt.Printf("Deleted memory %d\n", id)

	case cmdImportance:
		fields := strings.Fields(arg)
		if len(fields) != 2 {
			fmt.Println("Usage: !importance <id> <value>")
			return
		}
		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			fmt.Println("Usage: !importance <id> <value>")
			return
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			fmt.Println("Usage: !importance <id> <value>")
			return
		}
		if err := engine.SetImportance(ctx, id, value); err != nil {
			fmt.Printf("Error updating importance: %v\n", err)
			return
		}
		fmt.Printf("Memory %d importance set to %.2f\n", id, value)

	case cmdEntity:
		fields := strings.Fields(arg)
		if len(fields) == 0 {
			fmt.Println("Usage: !entity <name> [type]")
			return
		}
		entityType := ""
		if len(fields) > 1 {
			entityType = fields[1]
		}
		entity, err := engine.AddEntity(ctx, fields[0], entityType, nil)
		if err != nil {
			fmt.Printf("Error upserting entity: %v\n", err)
			return
		}
		fmt.Printf("Entity %d: %s (%s)\n", entity.ID, entity.Name, entity.Type)

	case cmdLink:
		fields := strings.Fields(arg)
		if len(fields) != 2 {
			fmt.Println("Usage: !link <memory-id> <entity-name>")
			return
		}
		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			fmt.Println("Usage: !link <memory-id> <entity-name>")
			return
		}
		if err := engine.LinkMemoryEntity(ctx, id, fields[1]); err != nil {
			fmt.Printf("Error linking: %v\n", err)
			return
		}
		fmt.Printf("Linked memory %d to entity %q\n", id, fields[1])

	case cmdStats:
		stats, err := engine.Stats(ctx)
		if err != nil {
			fmt.Printf("Error fetching stats: %v\n", err)
			return
		}
		fmt.Printf("Memories: %d | Entities: %d | Indexed docs: %d | Vocabulary: %d\n",
			stats.TotalMemories, stats.TotalEntities, stats.IndexedDocs, stats.VocabularySize)
		for _, entry := range stats.ByCategory {
			fmt.Printf("  %-12s %d\n", entry.Category, entry.Count)
		}

	case cmdDecay:
		affected, err := engine.ApplyDecay(ctx)
		if err != nil {
			fmt.Printf("Error applying decay: %v\n", err)
			return
		}
		fmt.Printf("Decayed %d memories\n", affected)

	case cmdRebuild:
		result, err := engine.Rebuild(ctx)
		if err != nil {
			fmt.Printf("Error rebuilding index: %v\n", err)
			return
		}
		fmt.Printf("Rebuilt index over %d memories (dense: %v)\n", result.Count, result.Dense)

	case cmdExport:
		if arg == "" {
			fmt.Println("Usage: !export <file>")
			return
		}
		snapshot, err := engine.Export(ctx)
		if err != nil {
			fmt.Printf("Error exporting: %v\n", err)
			return
		}
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			fmt.Printf("Error encoding snapshot: %v\n", err)
			return
		}
		if err := os.WriteFile(arg, data, 0o644); err != nil {
			fmt.Printf("Error writing snapshot: %v\n", err)
			return
		}
		fmt.Printf("Exported %d memories and %d entities to %s\n",
			len(snapshot.Memories), len(snapshot.Entities), arg)

	case cmdImport:
		if arg == "" {
			fmt.Println("Usage: !import <file>")
			return
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			fmt.Printf("Error reading snapshot: %v\n", err)
			return
		}
		var snapshot memory.Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			fmt.Printf("Error decoding snapshot: %v\n", err)
			return
		}
		result, err := engine.Import(ctx, &snapshot)
		if err != nil {
			fmt.Printf("Error importing: %v\n", err)
			return
		}
		fmt.Printf("Imported %d new memories (%d duplicates, %d entities)\n",
			result.Added, result.Duplicates, result.Entities)

	case cmdConfig:
		fmt.Println("Current configuration:")
		fmt.Println("  Database:", cfg.Storage.Path)
		fmt.Println("  Dense store:", cfg.Storage.DensePath)
		fmt.Println("  Embedding provider:", providerLabel(cfg))
		fmt.Println("  Default limit:", cfg.Search.DefaultLimit)
		fmt.Println("  Min score:", cfg.Search.MinScore)
		fmt.Println("  Dedup threshold:", cfg.Dedup.Threshold)

	default:
		fmt.Printf("Unknown command: %s\nType !help for available commands.\n", cmd)
	}
}

func runSemanticSearch(ctx context.Context, engine *memory.Engine, query string) {
	results, err := engine.SemanticSearchAuto(ctx, query, memory.SearchOptions{})
	if err != nil {
		fmt.Printf("Error searching: %v\n", err)
		return
	}
	printResults(results)
}

func printResults(results []memory.SearchResult) {
	if len(results) == 0 {
		fmt.Println("No memories found.")
		return
	}
	fmt.Printf("Found %d memories:\n", len(results))
	for i, result := range results {
		fmt.Printf("%d. [%d] (%.3f, %s) %s\n",
			i+1, result.Memory.ID, result.Score, result.Engine, result.Memory.Content)
	}
}

func providerLabel(cfg *config.Config) string {
	if cfg.Embedding.Provider == "" {
		return "none (TF-IDF only)"
	}
	return cfg.Embedding.Provider
}
