package main

import (
	"fmt"
	"os"

	"github.com/dvloznov/bookkeeper/internal/config"
	"github.com/dvloznov/bookkeeper/internal/logger"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	log := logger.New()
	cfg, err := config.Load(envFile())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log = logger.NewConsole(os.Stderr, cfg.LogLevel)

	commands := map[string]func(*config.Config, zerolog.Logger, []string){
		"init":      runInit,
		"list":      runList,
		"show":      runShow,
		"add":       runAdd,
		"set":       runSet,
		"delete":    runDelete,
		"duplicate": runDuplicate,
		"stats":     runStats,
		"loans":     runLoans,
		"jobs":      runJobs,
		"settings":  runSettings,
		"backup":    runBackup,
		"restore":   runRestore,
		"export":    runExport,
		"report":    runReport,
	}

	switch cmd := os.Args[1]; cmd {
	case "help", "-h", "--help":
		printUsage()
	default:
		run, ok := commands[cmd]
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
			printUsage()
			os.Exit(1)
		}
		run(cfg, log, os.Args[2:])
	}
}

func envFile() string {
	if f := os.Getenv("BOOKKEEPER_ENV_FILE"); f != "" {
		return f
	}
	return ".env"
}

func printUsage() {
	fmt.Println("Bookkeeper CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  init       Create the data and settings files")
	fmt.Println("  list       List transactions")
	fmt.Println("  show       Show every field of a transaction")
	fmt.Println("  add        Add a transaction")
	fmt.Println("  set        Change one field of a transaction")
	fmt.Println("  delete     Delete a transaction")
	fmt.Println("  duplicate  Copy a transaction under a new id")
	fmt.Println("  stats      Income and expenses per category, month, transactor or payment method")
	fmt.Println("  loans      Open loan balances, or settle them with -settle")
	fmt.Println("  jobs       Hours and pay of job entries")
	fmt.Println("  settings   Show or change settings (key=value ...)")
	fmt.Println("  backup     Copy the data file to the backup location")
	fmt.Println("  restore    Replace the data file with the backup")
	fmt.Println("  export     Export transactions to BigQuery")
	fmt.Println("  report     Monthly totals from the BigQuery export")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}
